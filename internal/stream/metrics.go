package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ellen_stream_events_total",
		Help: "Chat stream events decoded, by event type",
	}, []string{"type"})

	parseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ellen_stream_parse_failures_total",
		Help: "Chat stream lines skipped because they failed to parse",
	})

	streamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ellen_stream_errors_total",
		Help: "Chat streams terminated by an in-band or transport error",
	})
)
