// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	createdCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyward_sessions_created_total",
		Help: "Total number of sessions created",
	})

	invalidatedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyward_sessions_invalidated_total",
		Help: "Total number of sessions invalidated, by scope",
	}, []string{"scope"})

	sweptCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyward_sessions_swept_total",
		Help: "Total number of expired sessions deleted by cleanup",
	})
)
