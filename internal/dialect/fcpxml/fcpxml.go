// Package fcpxml implements the sequence dialect adapter: resources
// (formats and assets) plus a library/event/project hierarchy whose
// sequence holds one spine per track. All timing on the wire uses rational
// seconds ("N/Ds"); a clip element carries its timeline position (offset),
// media in-point (start) and length (duration), and spine children must be
// contiguous, so every offset equals the sum of the lengths before it.
package fcpxml

import (
	"loom/internal/dialect"
	"loom/internal/timecode"
)

// DialectName is the registry key for the sequence dialect.
const DialectName = "fcpxml"

const (
	documentVersion = "1.10"
	formatID        = "r1"
	paramOutputHash = "output_hash"
)

type adapter struct {
	opts dialect.Options
}

// New constructs the sequence dialect adapter.
func New(opts dialect.Options) dialect.Adapter {
	return &adapter{opts: opts}
}

func init() {
	dialect.Register(DialectName, New)
}

func (a *adapter) Name() string { return DialectName }

// frameDuration is the reciprocal of the frame rate, the encoding the
// format element uses.
func frameDuration(fps timecode.Rational) timecode.Rational {
	return timecode.MustNew(fps.Den(), fps.Num())
}
