// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package login

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes for the attempts counter.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeError   = "error"
)

var attemptsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "keyward_logins_total",
	Help: "Total number of login attempts, by outcome",
}, []string{"outcome"})
