// SPDX-License-Identifier: MIT

package proc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	startTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvgate_proc_start_total",
		Help: "Total number of transcoder process starts",
	}, []string{"result"})

	exitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvgate_proc_exit_total",
		Help: "Total number of transcoder process exits",
	}, []string{"reason"})
)
