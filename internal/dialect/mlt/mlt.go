// Package mlt implements the track dialect adapter: an MLT-style document
// of producers, playlists with entry/blank children, and a tractor binding
// playlists into a multitrack composition. All timing on the wire uses
// clock strings ("HH:MM:SS.mmm"); entry in/out mark the source span with an
// exclusive out point, so an entry's duration is exactly out minus in.
package mlt

import (
	"loom/internal/dialect"
	"loom/internal/timecode"
)

// DialectName is the registry key for the track dialect.
const DialectName = "mlt"

const (
	propResource   = "resource"
	propService    = "mlt_service"
	propCaption    = "shotcut:caption"
	propOutputHash = "output_hash"
)

type adapter struct {
	opts dialect.Options
}

// New constructs the track dialect adapter.
func New(opts dialect.Options) dialect.Adapter {
	return &adapter{opts: opts}
}

func init() {
	dialect.Register(DialectName, New)
}

func (a *adapter) Name() string { return DialectName }

// clock renders a rational time as a clock string. Without the lossy option
// a value carrying sub-millisecond precision fails; with it the value is
// rounded to the nearest millisecond.
func (a *adapter) clock(t timecode.Rational) (string, error) {
	formatted, err := timecode.FormatClock(t)
	if err == nil {
		return formatted, nil
	}
	if !a.opts.LossyTiming || t.Sign() < 0 {
		return "", err
	}
	millis := (t.Num()*1000 + t.Den()/2) / t.Den()
	return timecode.FormatClock(timecode.MustNew(millis, 1000))
}
