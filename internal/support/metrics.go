package support

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	handoffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "support_handoffs_total",
		Help: "Conversations handed off from the assistant to a human agent.",
	})
	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "support_upstream_failures_total",
		Help: "Failed or timed out calls to the text generator, operator channel or media store.",
	}, []string{"operation"})
	operatorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "support_operator_events_total",
		Help: "Inbound operator webhook events by outcome.",
	}, []string{"outcome"})
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "support_messages_total",
		Help: "Messages persisted by sender type.",
	}, []string{"sender_type"})
)
