package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var challengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uniattend_challenges_issued",
	Help: "The total number of liveness challenges issued",
}, []string{"direction"})
