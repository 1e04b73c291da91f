// SPDX-License-Identifier: MIT

package dvr

import (
	"context"
	"os"

	"github.com/tvgate/tvgate/internal/log"
)

// RunAutoDelete removes recordings older than each user's retention window.
// It runs on a daily schedule independent of job scheduling. A missing file
// is an opportunity to drop the orphaned row, not an error.
func (m *Manager) RunAutoDelete(ctx context.Context, retention Retention) {
	logger := log.WithComponent("dvr.autodelete")

	users, err := m.store.ListRecordingUserIDs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("retention sweep failed to list users")
		return
	}

	now := m.clock.Now()
	deleted := 0
	for _, user := range users {
		days := retention.AutoDeleteDays(user)
		if days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -days)

		recs, err := m.store.ListRecordings(ctx, user)
		if err != nil {
			logger.Warn().Err(err).Str(log.FieldUserID, user).Msg("retention sweep failed to list recordings")
			continue
		}
		for _, rec := range recs {
			if !olderThan(rec, cutoff) {
				continue
			}
			if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
				logger.Warn().Err(err).Str(log.FieldPath, rec.FilePath).Msg("failed to delete recording file")
				continue
			}
			if err := m.store.DeleteRecording(ctx, rec.ID); err != nil {
				logger.Warn().Err(err).Str("recording_id", rec.ID).Msg("failed to delete recording row")
				continue
			}
			deleted++
			recordingsAutoDeleted.Inc()
			logger.Info().
				Str(log.FieldUserID, user).
				Str(log.FieldPath, rec.FilePath).
				Time("recorded_at", rec.StartTime).
				Msg("recording expired by retention")
		}
	}

	if deleted > 0 {
		logger.Info().Int("count", deleted).Msg("retention sweep removed recordings")
	}
}
