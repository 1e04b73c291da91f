// SPDX-License-Identifier: MIT

package dvr

import (
	"context"
	"time"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Job is one scheduled or completed recording intent. StartTime and EndTime
// include the configured pre/post buffers.
type Job struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ChannelID    string    `json:"channelId"`
	ChannelName  string    `json:"channelName"`
	ProgramTitle string    `json:"programTitle"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	Status       Status    `json:"status"`
	ProfileID    string    `json:"profileId"`
	UserAgentID  string    `json:"userAgentId"`
	FFmpegPID    int       `json:"ffmpegPid,omitempty"`
	FilePath     string    `json:"filePath,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Recording is the durable artifact row for a successfully completed job.
// It outlives the job's later deletion from history.
type Recording struct {
	ID              string    `json:"id"`
	JobID           string    `json:"jobId"`
	UserID          string    `json:"userId"`
	ChannelName     string    `json:"channelName"`
	ProgramTitle    string    `json:"programTitle"`
	FilePath        string    `json:"filePath"`
	FileSizeBytes   int64     `json:"fileSizeBytes"`
	DurationSeconds int       `json:"durationSeconds"`
	StartTime       time.Time `json:"startTime"`
	CreatedAt       time.Time `json:"createdAt"`
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	UserID   string
	Statuses []Status
}

// Store is the persistence contract the scheduler depends on. The sqlite
// implementation lives in internal/store.
type Store interface {
	InsertJob(ctx context.Context, j Job) error
	UpdateJob(ctx context.Context, j Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]Job, error)
	DeleteJob(ctx context.Context, id string) error

	InsertRecording(ctx context.Context, r Recording) error
	ListRecordings(ctx context.Context, userID string) ([]Recording, error)
	ListRecordingUserIDs(ctx context.Context) ([]string, error)
	DeleteRecording(ctx context.Context, id string) error
}

// Retention exposes the per-user auto-delete setting owned by the external
// settings layer. A value <= 0 disables retention for that user.
type Retention interface {
	AutoDeleteDays(userID string) int
}
