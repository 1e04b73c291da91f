// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldJobID     = "job_id"
	FieldUserID    = "user_id"
	FieldHistoryID = "history_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Media / stream fields
	FieldStreamURL = "stream_url"
	FieldChannel   = "channel"
	FieldProfile   = "profile"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
