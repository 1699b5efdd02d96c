package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uniattend_session_outcomes",
		Help: "The total number of verification session outcomes by result",
	}, []string{"result"})

	batchRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uniattend_batch_runs",
		Help: "The total number of batch verification runs started",
	})
)
