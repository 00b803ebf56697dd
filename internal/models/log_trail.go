package models

import (
	"fmt"

	"github.com/ternarybob/arbor"
)

// LogTrail is an ordered, human-readable record of one run.
// Each entry is prefixed with the component that produced it, e.g. "[Matcher] ...".
type LogTrail []string

// Concat returns a new trail with other appended. Neither input is modified.
func (l LogTrail) Concat(other LogTrail) LogTrail {
	out := make(LogTrail, 0, len(l)+len(other))
	out = append(out, l...)
	return append(out, other...)
}

// TrailRecorder accumulates the trail of a single component during one stage run.
// It is not shared between runs; Trail hands out a copy.
type TrailRecorder struct {
	component string
	entries   LogTrail
	logger    arbor.ILogger
}

// NewTrailRecorder creates a recorder for the named component.
// Entries are mirrored to logger at debug level when logger is non-nil.
func NewTrailRecorder(component string, logger arbor.ILogger) *TrailRecorder {
	return &TrailRecorder{
		component: component,
		logger:    logger,
	}
}

// Add appends a formatted entry.
func (r *TrailRecorder) Add(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.entries = append(r.entries, fmt.Sprintf("[%s] %s", r.component, msg))

	if r.logger != nil {
		r.logger.Debug().
			Str("component", r.component).
			Msg(msg)
	}
}

// Trail returns an immutable copy of the recorded entries.
func (r *TrailRecorder) Trail() LogTrail {
	out := make(LogTrail, len(r.entries))
	copy(out, r.entries)
	return out
}
