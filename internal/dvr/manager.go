// SPDX-License-Identifier: MIT

// Package dvr schedules unattended recordings: conflict detection at
// schedule time, timer-driven start/stop, recording-process supervision and
// crash recovery across server restarts.
package dvr

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tvgate/tvgate/internal/channels"
	"github.com/tvgate/tvgate/internal/history"
	"github.com/tvgate/tvgate/internal/log"
	"github.com/tvgate/tvgate/internal/observe"
	"github.com/tvgate/tvgate/internal/proc"
	"github.com/tvgate/tvgate/internal/profile"
)

// Options configures a Manager.
type Options struct {
	RecordingsDir           string
	MaxConcurrentRecordings int           // overlap limit per user, default 1
	PreBuffer               time.Duration // default lead before program start
	PostBuffer              time.Duration // default tail after program end
	Clock                   Clock         // nil means RealClock
}

// Manager owns the DvrJob lifecycle. All table mutations are serialized
// behind its mutex; timers and process exits funnel back through it.
type Manager struct {
	store    Store
	dir      channels.Directory
	resolver *profile.Resolver
	runner   *proc.Runner
	history  *history.Recorder
	hub      *observe.Hub
	clock    Clock
	logger   zerolog.Logger

	recordingsDir string
	maxConcurrent int
	preBuffer     time.Duration
	postBuffer    time.Duration

	// lifeCtx spans the manager's lifetime. Timers and recorders hang off
	// it, not off the scheduling request's context, so a job armed by an
	// HTTP handler survives the request ending.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]chan struct{}    // jobID -> cancel, disarms both timers
	active map[string]*activeRecording // jobID -> supervised process
}

type activeRecording struct {
	process   *proc.Process
	historyID string
	startedAt time.Time
}

// NewManager wires a Manager with its collaborators.
func NewManager(store Store, dir channels.Directory, resolver *profile.Resolver, runner *proc.Runner, rec *history.Recorder, hub *observe.Hub, opts Options) *Manager {
	if opts.MaxConcurrentRecordings < 1 {
		opts.MaxConcurrentRecordings = 1
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	return &Manager{
		store:         store,
		dir:           dir,
		resolver:      resolver,
		runner:        runner,
		history:       rec,
		hub:           hub,
		clock:         opts.Clock,
		logger:        log.WithComponent("dvr"),
		recordingsDir: opts.RecordingsDir,
		maxConcurrent: opts.MaxConcurrentRecordings,
		preBuffer:     opts.PreBuffer,
		postBuffer:    opts.PostBuffer,
		lifeCtx:       lifeCtx,
		lifeCancel:    lifeCancel,
		timers:        make(map[string]chan struct{}),
		active:        make(map[string]*activeRecording),
	}
}

// ScheduleRequest is a recording intent for a future program window.
// Negative buffer minutes select the configured defaults.
type ScheduleRequest struct {
	UserID            string
	ChannelID         string
	ProgramTitle      string
	Start             time.Time
	Stop              time.Time
	PreBufferMinutes  int
	PostBufferMinutes int
	ProfileID         string
	UserAgentID       string
}

// Schedule persists a job for the buffered window and arms its timers.
// It fails with ChannelNotFound, ErrPastSchedule or a ConflictError carrying
// the full blocking job list; the limit is never silently overridden.
func (m *Manager) Schedule(ctx context.Context, req ScheduleRequest) (Job, error) {
	pre := m.preBuffer
	if req.PreBufferMinutes >= 0 {
		pre = time.Duration(req.PreBufferMinutes) * time.Minute
	}
	post := m.postBuffer
	if req.PostBufferMinutes >= 0 {
		post = time.Duration(req.PostBufferMinutes) * time.Minute
	}

	start := req.Start.Add(-pre)
	end := req.Stop.Add(post)

	now := m.clock.Now()
	if !end.After(now) {
		return Job{}, ErrPastSchedule
	}

	ch, err := m.dir.ResolveChannel(req.ChannelID)
	if err != nil {
		return Job{}, err
	}

	conflicts, err := m.conflicting(ctx, req.UserID, start, end, "")
	if err != nil {
		return Job{}, err
	}
	if len(conflicts) >= m.maxConcurrent {
		return Job{}, &ConflictError{Conflicting: conflicts}
	}

	job := Job{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		ChannelID:    req.ChannelID,
		ChannelName:  ch.Name,
		ProgramTitle: req.ProgramTitle,
		StartTime:    start,
		EndTime:      end,
		Status:       StatusScheduled,
		ProfileID:    req.ProfileID,
		UserAgentID:  req.UserAgentID,
		CreatedAt:    now,
	}
	if err := m.store.InsertJob(ctx, job); err != nil {
		return Job{}, err
	}

	m.armJob(job)
	jobsScheduled.Inc()
	m.logger.Info().
		Str(log.FieldJobID, job.ID).
		Str(log.FieldUserID, job.UserID).
		Str(log.FieldChannel, job.ChannelName).
		Time("start", job.StartTime).
		Time("end", job.EndTime).
		Msg("recording scheduled")
	return job, nil
}

// conflicting returns the user's scheduled jobs overlapping [start, end).
// Touching boundaries (newStart == existingEnd) do not conflict.
func (m *Manager) conflicting(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]Job, error) {
	existing, err := m.store.ListJobs(ctx, JobFilter{UserID: userID, Statuses: []Status{StatusScheduled}})
	if err != nil {
		return nil, err
	}
	var conflicts []Job
	for _, j := range existing {
		if j.ID == excludeID {
			continue
		}
		if start.Before(j.EndTime) && end.After(j.StartTime) {
			conflicts = append(conflicts, j)
		}
	}
	return conflicts, nil
}

// armJob starts the two independent timers for a job. The start timer is a
// no-op delay when the start is already past; the stop timer is always
// armed so an overdue job still gets cleanly stopped.
func (m *Manager) armJob(job Job) {
	cancel := make(chan struct{})
	m.mu.Lock()
	if prev, ok := m.timers[job.ID]; ok {
		close(prev)
	}
	m.timers[job.ID] = cancel
	m.mu.Unlock()

	now := m.clock.Now()
	startDelay := job.StartTime.Sub(now)
	if startDelay < 0 {
		startDelay = 0
	}
	stopDelay := job.EndTime.Sub(now)
	if stopDelay < 0 {
		stopDelay = 0
	}

	go m.waitAndFire(cancel, startDelay, func() { m.startRecording(m.lifeCtx, job.ID) })
	go m.waitAndFire(cancel, stopDelay, func() { m.stopOnSchedule(job.ID) })
}

func (m *Manager) waitAndFire(cancel chan struct{}, d time.Duration, fire func()) {
	t := m.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-m.lifeCtx.Done():
	case <-cancel:
	case <-t.C():
		fire()
	}
}

// disarm cancels both timers for a job if armed.
func (m *Manager) disarm(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.timers[jobID]; ok {
		close(cancel)
		delete(m.timers, jobID)
	}
}

// stopOnSchedule is the stop-timer callback: gracefully interrupt the
// recording if it is still running.
func (m *Manager) stopOnSchedule(jobID string) {
	m.mu.Lock()
	ar := m.active[jobID]
	m.mu.Unlock()
	if ar == nil {
		return
	}
	m.logger.Info().Str(log.FieldJobID, jobID).Msg("recording window ended, stopping")
	if err := ar.process.Interrupt(); err != nil {
		m.logger.Warn().Err(err).Str(log.FieldJobID, jobID).Msg("failed to interrupt recording")
	}
}

// StopRecording handles an explicit user stop. It interrupts the tracked
// process and returns immediately; the exit handler classifies the outcome.
// An untracked job is a no-op warning, not an error.
func (m *Manager) StopRecording(jobID string) error {
	m.mu.Lock()
	ar := m.active[jobID]
	m.mu.Unlock()
	if ar == nil {
		m.logger.Warn().Str(log.FieldJobID, jobID).Msg("stop requested for job with no tracked process")
		return nil
	}
	m.logger.Info().Str(log.FieldJobID, jobID).Msg("stopping recording on user request")
	return ar.process.Interrupt()
}

// Cancel transitions a scheduled job to cancelled and disarms its timers.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusScheduled {
		return ErrNotCancellable
	}

	m.disarm(jobID)
	job.Status = StatusCancelled
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	m.logger.Info().Str(log.FieldJobID, jobID).Msg("recording cancelled")
	return nil
}

// Reschedule moves a scheduled job to a new window, conflict-checking the
// new window against every other scheduled job.
func (m *Manager) Reschedule(ctx context.Context, jobID string, req ScheduleRequest) (Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.Status != StatusScheduled {
		return Job{}, ErrNotReschedulable
	}

	pre := m.preBuffer
	if req.PreBufferMinutes >= 0 {
		pre = time.Duration(req.PreBufferMinutes) * time.Minute
	}
	post := m.postBuffer
	if req.PostBufferMinutes >= 0 {
		post = time.Duration(req.PostBufferMinutes) * time.Minute
	}
	start := req.Start.Add(-pre)
	end := req.Stop.Add(post)

	if !end.After(m.clock.Now()) {
		return Job{}, ErrPastSchedule
	}
	conflicts, err := m.conflicting(ctx, job.UserID, start, end, job.ID)
	if err != nil {
		return Job{}, err
	}
	if len(conflicts) >= m.maxConcurrent {
		return Job{}, &ConflictError{Conflicting: conflicts}
	}

	m.disarm(jobID)
	job.StartTime = start
	job.EndTime = end
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return Job{}, err
	}
	m.armJob(job)
	m.logger.Info().
		Str(log.FieldJobID, jobID).
		Time("start", start).
		Time("end", end).
		Msg("recording rescheduled")
	return job, nil
}

// ListJobs returns a filtered snapshot of the job table.
func (m *Manager) ListJobs(ctx context.Context, f JobFilter) ([]Job, error) {
	return m.store.ListJobs(ctx, f)
}

// ListRecordings returns the durable artifact rows for a user.
func (m *Manager) ListRecordings(ctx context.Context, userID string) ([]Recording, error) {
	return m.store.ListRecordings(ctx, userID)
}

// Shutdown disarms every pending timer and interrupts every active
// recording. The exit handlers still run and classify the results before
// the daemon exits.
func (m *Manager) Shutdown() {
	m.lifeCancel()

	m.mu.Lock()
	active := make([]*activeRecording, 0, len(m.active))
	for _, ar := range m.active {
		active = append(active, ar)
	}
	m.mu.Unlock()

	for _, ar := range active {
		_ = ar.process.Interrupt()
	}
}

func (m *Manager) notifyObservers() {
	if m.hub != nil {
		m.hub.Notify(nil)
	}
}
