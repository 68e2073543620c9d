package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `id, run_id, clip_id, clip_name, content_hash, status,
    source_path, span_path, output_path, stage_chain, error_message,
    created_at, updated_at`

// Acquire claims a job slot for a content hash. When a prior run already
// finished the same work, the stored job is returned with cached true and
// its artifact may be reused. Otherwise the job is (re)claimed for the
// given run in pending state.
func (s *Store) Acquire(ctx context.Context, runID string, job *Job) (*Job, bool, error) {
	if job == nil {
		return nil, false, errors.New("job is nil")
	}
	if job.ContentHash == "" {
		return nil, false, errors.New("job has no content hash")
	}

	existing, err := s.GetByHash(ctx, job.ContentHash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Status.Reusable() {
			return existing, true, nil
		}
		now := time.Now().UTC()
		if err := s.execWithoutResultRetry(
			ctx,
			`UPDATE jobs SET run_id = ?, clip_id = ?, clip_name = ?, status = ?,
                 error_message = NULL, updated_at = ?
             WHERE id = ?`,
			runID,
			job.ClipID,
			job.ClipName,
			StatusPending,
			now.Format(time.RFC3339Nano),
			existing.ID,
		); err != nil {
			return nil, false, fmt.Errorf("reclaim job: %w", err)
		}
		claimed, err := s.GetByID(ctx, existing.ID)
		return claimed, false, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            run_id, clip_id, clip_name, content_hash, status,
            source_path, span_path, output_path, stage_chain,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		job.ClipID,
		job.ClipName,
		job.ContentHash,
		StatusPending,
		nullableString(job.SourcePath),
		nullableString(job.SpanPath),
		nullableString(job.OutputPath),
		nullableString(job.StageChain),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	inserted, err := s.GetByID(ctx, id)
	return inserted, false, err
}

// GetByID fetches a job by identifier. A miss returns nil without error.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByHash fetches a job by content hash. A miss returns nil without
// error.
func (s *Store) GetByHash(ctx context.Context, hash string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE content_hash = ?`, hash)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by hash: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET run_id = ?, clip_id = ?, clip_name = ?, status = ?,
             source_path = ?, span_path = ?, output_path = ?, stage_chain = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		job.RunID,
		job.ClipID,
		job.ClipName,
		job.Status,
		nullableString(job.SourcePath),
		nullableString(job.SpanPath),
		nullableString(job.OutputPath),
		nullableString(job.StageChain),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Transition moves a job to a new status.
func (s *Store) Transition(ctx context.Context, id int64, status Status) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, id,
	)
}

// MarkFailed records a job failure with its message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, nullableString(message), now, id,
	)
}

// JobsByRun returns the jobs claimed by a run ordered by creation.
func (s *Store) JobsByRun(ctx context.Context, runID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResetStalled rewinds jobs stuck in a transient status back to pending.
// Called on startup so jobs orphaned by a crashed run become claimable.
func (s *Store) ResetStalled(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status IN (?, ?)`,
		StatusPending, now, StatusProcessing, StatusExtracted,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stalled jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts jobs per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var raw string
		var count int
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		if status, ok := ParseStatus(raw); ok {
			stats[status] = count
		}
	}
	return stats, rows.Err()
}

// Clear removes all cached jobs.
func (s *Store) Clear(ctx context.Context) error {
	return s.execWithoutResultRetry(ctx, `DELETE FROM jobs`)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job          Job
		clipName     sql.NullString
		sourcePath   sql.NullString
		spanPath     sql.NullString
		outputPath   sql.NullString
		stageChain   sql.NullString
		errorMessage sql.NullString
		createdAt    string
		updatedAt    string
		status       string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.RunID,
		&job.ClipID,
		&clipName,
		&job.ContentHash,
		&status,
		&sourcePath,
		&spanPath,
		&outputPath,
		&stageChain,
		&errorMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	parsed, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q in job %d", status, job.ID)
	}
	job.Status = parsed
	job.ClipName = clipName.String
	job.SourcePath = sourcePath.String
	job.SpanPath = spanPath.String
	job.OutputPath = outputPath.String
	job.StageChain = stageChain.String
	job.ErrorMessage = errorMessage.String

	var err error
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
