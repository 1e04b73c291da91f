// SPDX-License-Identifier: MIT

// Package settings reads the user-authored stream/recording profiles,
// user agents and retention preferences maintained by the external settings
// layer. The core only consumes them through the profile.Source and
// dvr.Retention contracts.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tvgate/tvgate/internal/profile"
)

// StreamProfile is one user-authored command template.
type StreamProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Command string `json:"command"`
}

// UserAgentDef is one selectable User-Agent string.
type UserAgentDef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type document struct {
	LiveProfiles      []StreamProfile `json:"liveProfiles"`
	RecordingProfiles []StreamProfile `json:"recordingProfiles"`
	UserAgents        []UserAgentDef  `json:"userAgents"`
	AutoDeleteDays    map[string]int  `json:"autoDeleteDays"` // per user id
}

// Settings is a loaded settings document. It implements profile.Source and
// dvr.Retention.
type Settings struct {
	mu  sync.RWMutex
	doc document
}

// Load reads a settings JSON file. A missing file yields empty settings:
// the admin simply has not configured profiles yet.
func Load(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path) // #nosec G304 -- operator-owned config path
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return s, nil
}

// Replace swaps the whole document, for reload-from-UI flows.
func (s *Settings) Replace(live, recording []StreamProfile, agents []UserAgentDef, autoDelete map[string]int) {
	s.mu.Lock()
	s.doc = document{
		LiveProfiles:      live,
		RecordingProfiles: recording,
		UserAgents:        agents,
		AutoDeleteDays:    autoDelete,
	}
	s.mu.Unlock()
}

// ActiveProfile implements profile.Source.
func (s *Settings) ActiveProfile(kind profile.Kind, profileID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.doc.LiveProfiles
	if kind == profile.KindRecording {
		list = s.doc.RecordingProfiles
	}
	for _, p := range list {
		if p.ID == profileID {
			return profile.Profile{ID: p.ID, Name: p.Name, Command: p.Command}, nil
		}
	}
	return profile.Profile{}, fmt.Errorf("%w: %s (%s)", profile.ErrProfileNotFound, profileID, kind)
}

// UserAgent implements profile.Source.
func (s *Settings) UserAgent(id string) (profile.UserAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ua := range s.doc.UserAgents {
		if ua.ID == id {
			return profile.UserAgent{ID: ua.ID, Name: ua.Name, Value: ua.Value}, nil
		}
	}
	return profile.UserAgent{}, fmt.Errorf("%w: %s", profile.ErrUserAgentNotFound, id)
}

// AutoDeleteDays implements dvr.Retention.
func (s *Settings) AutoDeleteDays(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.AutoDeleteDays[userID]
}
