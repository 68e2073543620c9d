package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"loom/internal/services"
	"loom/internal/timecode"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FrameRate  string `json:"r_frame_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect",
			strings.TrimSpace(string(output)), err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", "malformed probe output", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// FirstVideoStream returns the first video stream, if any.
func (r Result) FirstVideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// Resolution returns the frame size of the first video stream, or zeros
// when the container carries no video.
func (r Result) Resolution() (width, height int) {
	stream, ok := r.FirstVideoStream()
	if !ok {
		return 0, 0
	}
	return stream.Width, stream.Height
}

// Duration returns the container duration as an exact rational. ffprobe
// reports decimal seconds with microsecond precision, so the value is
// parsed digit by digit rather than through a float.
func (r Result) Duration() (timecode.Rational, error) {
	return parseDecimalSeconds(r.Format.Duration)
}

func parseDecimalSeconds(value string) (timecode.Rational, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return timecode.Zero, services.Wrap(services.ErrExternalTool, "ffprobe", "duration", "no duration reported", nil)
	}
	whole, frac, _ := strings.Cut(cleaned, ".")
	seconds, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return timecode.Zero, services.Wrap(services.ErrExternalTool, "ffprobe", "duration",
			fmt.Sprintf("unparseable duration %q", value), err)
	}
	if frac == "" {
		return timecode.FromInt(seconds), nil
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	num, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return timecode.Zero, services.Wrap(services.ErrExternalTool, "ffprobe", "duration",
			fmt.Sprintf("unparseable duration %q", value), err)
	}
	den := int64(1)
	for i := 0; i < len(frac); i++ {
		den *= 10
	}
	return timecode.FromInt(seconds).Add(timecode.MustNew(num, den)), nil
}
