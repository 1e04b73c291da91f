// SPDX-License-Identifier: MIT

package dvr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvgate_dvr_jobs_scheduled_total",
		Help: "Total number of recording jobs accepted",
	})

	recordingsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvgate_dvr_recordings_started_total",
		Help: "Total number of recording processes started",
	})

	recordingsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvgate_dvr_recordings_finished_total",
		Help: "Recording jobs reaching a terminal state",
	}, []string{"result"})

	recordingsAutoDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvgate_dvr_recordings_autodeleted_total",
		Help: "Recordings removed by the retention sweep",
	})
)
