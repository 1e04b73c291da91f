// SPDX-License-Identifier: MIT

// Package profile resolves user-authored command templates into argument
// vectors for the transcoder subprocess.
package profile

import (
	"errors"
	"strings"
)

var (
	// ErrProfileNotFound is returned when no active profile exists for the
	// requested id and kind.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrUserAgentNotFound is returned when the referenced user agent id is
	// unknown to the settings source.
	ErrUserAgentNotFound = errors.New("user agent not found")
)

// Kind selects between the live-stream and recording template families.
type Kind string

const (
	KindLive      Kind = "live"
	KindRecording Kind = "recording"
)

// redirectSentinel marks a profile that spawns no process; the client is
// redirected straight to the upstream URL.
const redirectSentinel = "redirect"

// Profile is a resolved command template.
type Profile struct {
	ID      string
	Name    string
	Command string
}

// IsRedirect reports whether this profile is the sentinel "redirect" profile.
func (p Profile) IsRedirect() bool {
	return strings.TrimSpace(p.Command) == redirectSentinel || p.ID == redirectSentinel
}

// UserAgent is a named User-Agent string selectable per stream.
type UserAgent struct {
	ID    string
	Name  string
	Value string
}

// Source is the settings collaborator the resolver reads templates from.
type Source interface {
	ActiveProfile(kind Kind, profileID string) (Profile, error)
	UserAgent(id string) (UserAgent, error)
}

// Resolver turns (kind, profileID, userAgentID) plus runtime values into a
// ready-to-spawn argument vector.
type Resolver struct {
	source Source
}

// NewResolver creates a Resolver backed by the given settings source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve fetches the profile and user agent for a request. Callers check
// Profile.IsRedirect before asking for arguments.
func (r *Resolver) Resolve(kind Kind, profileID, userAgentID string) (Profile, UserAgent, error) {
	p, err := r.source.ActiveProfile(kind, profileID)
	if err != nil {
		return Profile{}, UserAgent{}, err
	}
	ua, err := r.source.UserAgent(userAgentID)
	if err != nil {
		return Profile{}, UserAgent{}, err
	}
	return p, ua, nil
}

// LiveArgs substitutes the live placeholders and tokenizes the template.
// {clientUserAgent} is accepted as a legacy alias of {userAgent} here only.
func LiveArgs(p Profile, streamURL, userAgent string) []string {
	cmd := p.Command
	cmd = strings.ReplaceAll(cmd, "{streamUrl}", streamURL)
	cmd = strings.ReplaceAll(cmd, "{userAgent}", userAgent)
	cmd = strings.ReplaceAll(cmd, "{clientUserAgent}", userAgent)
	return Tokenize(cmd)
}

// RecordingArgs substitutes the recording placeholders and tokenizes the
// template.
func RecordingArgs(p Profile, streamURL, userAgent, filePath string) []string {
	cmd := p.Command
	cmd = strings.ReplaceAll(cmd, "{streamUrl}", streamURL)
	cmd = strings.ReplaceAll(cmd, "{userAgent}", userAgent)
	cmd = strings.ReplaceAll(cmd, "{filePath}", filePath)
	return Tokenize(cmd)
}

// OutputExt derives the recording file extension from the template: ".mp4"
// when the command selects the mp4 muxer, ".ts" otherwise.
func OutputExt(p Profile) string {
	tokens := Tokenize(p.Command)
	for i := 0; i < len(tokens)-1; i++ {
		if tokens[i] == "-f" && tokens[i+1] == "mp4" {
			return ".mp4"
		}
	}
	return ".ts"
}
