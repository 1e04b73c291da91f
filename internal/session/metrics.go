// SPDX-License-Identifier: MIT

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attachTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvgate_stream_attach_total",
		Help: "Total number of stream attach requests",
	}, []string{"result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvgate_stream_sessions_active",
		Help: "Number of live stream sessions with a running process",
	})

	janitorKills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvgate_stream_janitor_kills_total",
		Help: "Sessions reclaimed by the inactivity janitor",
	})
)
