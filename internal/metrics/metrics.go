// Package metrics declares the Prometheus collectors of the story server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoryLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyworld_story_loads_total",
			Help: "Total number of story loads by source and result.",
		},
		[]string{"source", "result"},
	)

	ChoicesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyworld_choices_total",
			Help: "Total number of choice selections by result.",
		},
		[]string{"result"},
	)

	PlaySessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storyworld_play_sessions_active",
		Help: "Number of open websocket play sessions.",
	})

	RevealsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyworld_reveals_started_total",
		Help: "Total number of typing reveals started.",
	})
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
	ResultBroken   = "broken_link"
	ResultInvalid  = "invalid_choice"
)
