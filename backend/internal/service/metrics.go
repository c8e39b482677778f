package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatPublicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itchat",
			Name:      "chat_publications_total",
			Help:      "Bus publications by event kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	chatPublicationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itchat",
			Name:      "chat_new_message_publications_suppressed_total",
			Help:      "New-message notifications skipped because the message is a thread reply",
		},
	)

	chatMessagesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itchat",
			Name:      "chat_trashed_messages_purged_total",
			Help:      "Trashed messages removed after the retention period",
		},
	)
)
