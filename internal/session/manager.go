// SPDX-License-Identifier: MIT

// Package session multiplexes live transcoder processes across concurrent
// viewers. One process serves every viewer of the same
// (user, streamUrl, profile) key; teardown is deferred to the janitor so
// short reconnects never restart the upstream.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tvgate/tvgate/internal/channels"
	"github.com/tvgate/tvgate/internal/history"
	"github.com/tvgate/tvgate/internal/log"
	"github.com/tvgate/tvgate/internal/observe"
	"github.com/tvgate/tvgate/internal/proc"
	"github.com/tvgate/tvgate/internal/profile"
)

// ErrSessionNotFound is returned by Stop when no session matches.
var ErrSessionNotFound = fmt.Errorf("stream session not found")

// Key identifies one sharable live stream instance.
type Key struct {
	UserID    string
	StreamURL string
	ProfileID string
}

// Metadata decorates a session for observability only.
type Metadata struct {
	ChannelName string
	ChannelLogo string
	ProfileName string
	ClientIP    string
}

// Session is one live transcoder process and its viewer accounting. All
// fields are owned by the Manager; external reads go through Snapshot.
type Session struct {
	key        Key
	process    *proc.Process
	fanout     *proc.Fanout
	refCount   int
	lastAccess time.Time
	startedAt  time.Time
	historyID  string
	meta       Metadata

	// ready is closed once process spawn finished (ok or not); startErr is
	// valid afterwards. Concurrent attaches for the same key wait on it.
	ready    chan struct{}
	startErr error

	finalized bool
}

// Info is a read-only session snapshot for the admin view.
type Info struct {
	Key        Key
	RefCount   int
	PID        int
	StartedAt  time.Time
	LastAccess time.Time
	Meta       Metadata
}

// AttachRequest carries everything needed to join or create a session.
type AttachRequest struct {
	UserID      string
	StreamURL   string
	ProfileID   string
	UserAgentID string
	ClientIP    string
}

// AttachResult is returned to the transport layer. When Redirect is set the
// client is sent straight to RedirectURL and Output is nil.
type AttachResult struct {
	Key         Key
	Redirect    bool
	RedirectURL string
	Output      io.ReadCloser
}

// Manager owns the table of active live sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[Key]*Session

	resolver *profile.Resolver
	runner   *proc.Runner
	dir      channels.Directory
	history  *history.Recorder
	hub      *observe.Hub
	logger   zerolog.Logger
}

// NewManager wires a Manager with its collaborators.
func NewManager(resolver *profile.Resolver, runner *proc.Runner, dir channels.Directory, rec *history.Recorder, hub *observe.Hub) *Manager {
	return &Manager{
		sessions: make(map[Key]*Session),
		resolver: resolver,
		runner:   runner,
		dir:      dir,
		history:  rec,
		hub:      hub,
		logger:   log.WithComponent("session"),
	}
}

// Attach joins an existing session for the request key or creates one.
// Exactly one process is spawned per key no matter how many attaches race.
func (m *Manager) Attach(ctx context.Context, req AttachRequest) (AttachResult, error) {
	key := Key{UserID: req.UserID, StreamURL: req.StreamURL, ProfileID: req.ProfileID}

	p, ua, err := m.resolver.Resolve(profile.KindLive, req.ProfileID, req.UserAgentID)
	if err != nil {
		attachTotal.WithLabelValues("resolve_error").Inc()
		return AttachResult{}, err
	}

	meta := m.buildMetadata(req, p.Name)

	if p.IsRedirect() {
		// No process to multiplex; log for observability only.
		id := m.history.Start(ctx, history.Event{
			Kind:        history.KindStream,
			UserID:      req.UserID,
			Name:        meta.ChannelName,
			StreamURL:   req.StreamURL,
			ProfileName: p.Name,
			ClientIP:    req.ClientIP,
			Status:      "redirect",
		})
		m.logger.Info().
			Str(log.FieldUserID, req.UserID).
			Str(log.FieldStreamURL, req.StreamURL).
			Str(log.FieldHistoryID, id).
			Msg("redirecting client to upstream")
		attachTotal.WithLabelValues("redirect").Inc()
		m.notifyObservers()
		return AttachResult{Key: key, Redirect: true, RedirectURL: req.StreamURL}, nil
	}

	now := time.Now()

	m.mu.Lock()
	s, exists := m.sessions[key]
	if !exists {
		s = &Session{
			key:        key,
			lastAccess: now,
			meta:       meta,
			ready:      make(chan struct{}),
		}
		m.sessions[key] = s
	}
	s.refCount++
	refs := s.refCount
	s.lastAccess = now
	m.mu.Unlock()

	if !exists {
		m.spawn(ctx, s, p, ua, req)
	}

	<-s.ready
	if s.startErr != nil {
		attachTotal.WithLabelValues("spawn_error").Inc()
		return AttachResult{}, s.startErr
	}

	if exists {
		m.logger.Debug().
			Str(log.FieldUserID, req.UserID).
			Str(log.FieldStreamURL, req.StreamURL).
			Int("ref_count", refs).
			Msg("attached to existing session")
	}
	attachTotal.WithLabelValues("ok").Inc()
	m.notifyObservers()

	return AttachResult{
		Key:    key,
		Output: &Handle{consumer: s.fanout.Subscribe(), manager: m, key: key},
	}, nil
}

// spawn starts the transcoder for a freshly registered session. It runs
// outside the table lock; waiters block on s.ready instead.
func (m *Manager) spawn(ctx context.Context, s *Session, p profile.Profile, ua profile.UserAgent, req AttachRequest) {
	defer close(s.ready)

	args := profile.LiveArgs(p, req.StreamURL, ua.Value)
	// The process belongs to the session, not to the attaching request: the
	// creator's context ending must not kill a stream other viewers share.
	process, err := m.runner.Start(context.Background(), args)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, s.key)
		m.mu.Unlock()
		s.startErr = err
		m.logger.Error().Err(err).
			Str(log.FieldUserID, req.UserID).
			Str(log.FieldStreamURL, req.StreamURL).
			Msg("failed to spawn live transcoder")
		return
	}

	historyID := m.history.Start(ctx, history.Event{
		Kind:        history.KindStream,
		UserID:      req.UserID,
		Name:        s.meta.ChannelName,
		StreamURL:   req.StreamURL,
		ProfileName: s.meta.ProfileName,
		ClientIP:    req.ClientIP,
		Status:      "active",
	})

	// The session is already published in the table; Snapshot and the
	// janitor may read these fields at any time.
	m.mu.Lock()
	s.process = process
	s.fanout = proc.NewFanout(process.Stdout())
	s.startedAt = time.Now()
	s.historyID = historyID
	m.mu.Unlock()
	activeSessions.Inc()

	m.logger.Info().
		Str(log.FieldUserID, req.UserID).
		Str(log.FieldStreamURL, req.StreamURL).
		Str(log.FieldProfile, s.key.ProfileID).
		Int(log.FieldPID, process.PID()).
		Msg("live session started")

	go func() {
		ev := <-process.Exited()
		m.onExit(s, ev)
	}()
}

// onExit removes the session after its process terminated for any reason.
func (m *Manager) onExit(s *Session, ev proc.ExitEvent) {
	status := "completed"
	if ev.Code != 0 {
		status = "error"
	}
	if !m.finalize(s, status) {
		return // Stop or the janitor already finalized it
	}
	m.logger.Info().
		Str(log.FieldUserID, s.key.UserID).
		Str(log.FieldStreamURL, s.key.StreamURL).
		Int(log.FieldExitCode, ev.Code).
		Msg("live session process exited")
}

// finalize removes the session from the table and closes its history entry
// exactly once. Returns false if another path finalized it first.
func (m *Manager) finalize(s *Session, status string) bool {
	m.mu.Lock()
	if s.finalized {
		m.mu.Unlock()
		return false
	}
	s.finalized = true
	if cur, ok := m.sessions[s.key]; ok && cur == s {
		delete(m.sessions, s.key)
	}
	m.mu.Unlock()

	activeSessions.Dec()
	m.history.Stop(context.Background(), s.historyID, s.startedAt, status)
	m.notifyObservers()
	return true
}

// Detach decrements the viewer count for key. It never kills the process;
// reclamation of idle sessions belongs to the janitor or an explicit Stop.
func (m *Manager) Detach(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return
	}
	if s.refCount > 0 {
		s.refCount--
	}
	s.lastAccess = time.Now()
}

// Stop terminates the session matching user and URL. profileID may be empty
// for backward compatibility, matching any profile for that user and URL.
// While other viewers remain attached this reports success without touching
// the process: the last closer triggers teardown.
func (m *Manager) Stop(userID, streamURL, profileID string) error {
	m.mu.Lock()
	var s *Session
	if profileID != "" {
		s = m.sessions[Key{UserID: userID, StreamURL: streamURL, ProfileID: profileID}]
	} else {
		for k, cand := range m.sessions {
			if k.UserID == userID && k.StreamURL == streamURL {
				s = cand
				break
			}
		}
	}
	if s == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if s.refCount > 1 {
		m.mu.Unlock()
		m.logger.Debug().
			Str(log.FieldUserID, userID).
			Int("ref_count", s.refCount).
			Msg("stop ignored, other viewers attached")
		return nil
	}
	m.mu.Unlock()

	// A stop can race session creation; wait until the spawn settled so the
	// process cannot escape supervision.
	<-s.ready
	if s.startErr != nil {
		return nil
	}

	if s.process != nil {
		if err := s.process.Kill(); err != nil {
			m.logger.Warn().Err(err).
				Str(log.FieldUserID, userID).
				Msg("failed to kill session process")
		}
	}
	m.finalize(s, "stopped")
	m.logger.Info().
		Str(log.FieldUserID, userID).
		Str(log.FieldStreamURL, streamURL).
		Msg("live session stopped")
	return nil
}

// Snapshot returns a copy of the active session table.
func (m *Manager) Snapshot() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		info := Info{
			Key:        s.key,
			RefCount:   s.refCount,
			StartedAt:  s.startedAt,
			LastAccess: s.lastAccess,
			Meta:       s.meta,
		}
		if s.process != nil {
			info.PID = s.process.PID()
		}
		out = append(out, info)
	}
	return out
}

// Shutdown kills every live process. Used on daemon exit.
func (m *Manager) Shutdown() {
	type entry struct {
		session *Session
		process *proc.Process
	}

	m.mu.Lock()
	sessions := make([]entry, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, entry{session: s, process: s.process})
	}
	m.mu.Unlock()

	for _, e := range sessions {
		if e.process != nil {
			_ = e.process.Kill()
		}
		m.finalize(e.session, "stopped")
	}
}

func (m *Manager) buildMetadata(req AttachRequest, profileName string) Metadata {
	meta := Metadata{ProfileName: profileName, ClientIP: req.ClientIP}
	if ch, err := m.dir.ResolveChannelByURL(req.StreamURL); err == nil {
		meta.ChannelName = ch.Name
		meta.ChannelLogo = ch.Logo
	} else {
		meta.ChannelName = req.StreamURL
	}
	return meta
}

func (m *Manager) notifyObservers() {
	m.hub.Notify(m.Snapshot())
}

// Handle is the per-viewer output stream. Closing it detaches exactly once.
type Handle struct {
	consumer *proc.Consumer
	manager  *Manager
	key      Key
	once     sync.Once
}

// Read streams the shared process output.
func (h *Handle) Read(p []byte) (int, error) {
	return h.consumer.Read(p)
}

// Close releases the viewer's subscription and decrements the session
// reference count. Idempotent: double close must not double-decrement.
func (h *Handle) Close() error {
	h.once.Do(func() {
		_ = h.consumer.Close()
		h.manager.Detach(h.key)
	})
	return nil
}
