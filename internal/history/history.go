// SPDX-License-Identifier: MIT

// Package history is an append-only event log of stream and recording
// lifecycle transitions, consumed by the admin view. Writes are
// fire-and-forget: a lost history row must never block or crash a live
// stream or recording.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tvgate/tvgate/internal/log"
)

// Kind discriminates stream sessions from DVR recordings.
type Kind string

const (
	KindStream    Kind = "stream"
	KindRecording Kind = "recording"
)

// Event is one logged lifecycle entry. StoppedAt and DurationSeconds stay
// zero until the entry is finalized.
type Event struct {
	ID              string
	Kind            Kind
	UserID          string
	Name            string // channel or program display name
	StreamURL       string
	ProfileName     string
	ClientIP        string
	Status          string // "active", "redirect", "completed", "error", ...
	StartedAt       time.Time
	StoppedAt       time.Time
	DurationSeconds int
}

// Sink persists events. Implemented by the sqlite store.
type Sink interface {
	AppendEvent(ctx context.Context, ev Event) error
	FinalizeEvent(ctx context.Context, id string, stoppedAt time.Time, durationSeconds int, status string) error
}

// Recorder wraps a Sink with the core's fire-and-forget policy.
type Recorder struct {
	sink   Sink
	logger zerolog.Logger
}

// NewRecorder creates a Recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{
		sink:   sink,
		logger: log.WithComponent("history"),
	}
}

// Start appends a start event and returns its id for later finalization.
// Persistence failures are logged and swallowed.
func (r *Recorder) Start(ctx context.Context, ev Event) string {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.StartedAt.IsZero() {
		ev.StartedAt = time.Now()
	}
	if err := r.sink.AppendEvent(ctx, ev); err != nil {
		r.logger.Warn().Err(err).
			Str(log.FieldHistoryID, ev.ID).
			Str("kind", string(ev.Kind)).
			Msg("failed to append history event")
	}
	return ev.ID
}

// Stop finalizes an event with its duration and terminal status.
func (r *Recorder) Stop(ctx context.Context, id string, startedAt time.Time, status string) {
	if id == "" {
		return
	}
	now := time.Now()
	duration := 0
	if !startedAt.IsZero() && now.After(startedAt) {
		duration = int(now.Sub(startedAt).Seconds())
	}
	if err := r.sink.FinalizeEvent(ctx, id, now, duration, status); err != nil {
		r.logger.Warn().Err(err).
			Str(log.FieldHistoryID, id).
			Msg("failed to finalize history event")
	}
}
