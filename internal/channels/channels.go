// SPDX-License-Identifier: MIT

// Package channels defines the channel directory contract the core consumes.
// The directory itself is produced by the M3U/EPG ingestion pipeline, which
// lives outside this module.
package channels

import (
	"errors"
	"sort"
	"sync"
)

// ErrChannelNotFound is returned when neither id nor URL resolves.
var ErrChannelNotFound = errors.New("channel not found")

// Channel is the directory entry consumed by the session and DVR managers.
type Channel struct {
	ID   string
	URL  string
	Name string
	Logo string
}

// Directory resolves channels by id or by stream URL.
type Directory interface {
	ResolveChannel(id string) (Channel, error)
	// ResolveChannelByURL is used only to decorate live-stream history
	// entries with display metadata.
	ResolveChannelByURL(url string) (Channel, error)
}

// StaticDirectory is a Directory backed by an in-memory map, refreshed
// wholesale by the ingestion pipeline.
type StaticDirectory struct {
	mu    sync.RWMutex
	byID  map[string]Channel
	byURL map[string]Channel
}

// NewStaticDirectory creates an empty directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		byID:  make(map[string]Channel),
		byURL: make(map[string]Channel),
	}
}

// Replace swaps the full channel set atomically.
func (d *StaticDirectory) Replace(chans []Channel) {
	byID := make(map[string]Channel, len(chans))
	byURL := make(map[string]Channel, len(chans))
	for _, c := range chans {
		byID[c.ID] = c
		if c.URL != "" {
			byURL[c.URL] = c
		}
	}

	d.mu.Lock()
	d.byID = byID
	d.byURL = byURL
	d.mu.Unlock()
}

// ResolveChannel implements Directory.
func (d *StaticDirectory) ResolveChannel(id string) (Channel, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.byID[id]; ok {
		return c, nil
	}
	return Channel{}, ErrChannelNotFound
}

// ResolveChannelByURL implements Directory.
func (d *StaticDirectory) ResolveChannelByURL(url string) (Channel, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.byURL[url]; ok {
		return c, nil
	}
	return Channel{}, ErrChannelNotFound
}

// List returns every channel sorted by name, for admin snapshots.
func (d *StaticDirectory) List() []Channel {
	d.mu.RLock()
	out := make([]Channel, 0, len(d.byID))
	for _, c := range d.byID {
		out = append(out, c)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
