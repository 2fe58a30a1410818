/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors

   This file is part of magpie.

   magpie is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   magpie is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with magpie. If not, see <http://www.gnu.org/licenses/>.
*/

package acquire

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "magpie",
			Subsystem: "acquire",
			Name:      "frames_total",
			Help:      "Captured frames written to images.",
		},
	)
	bytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "magpie",
			Subsystem: "acquire",
			Name:      "sample_bytes_total",
			Help:      "Sample bytes read from acquisition RAM.",
		},
	)
	ramOverflows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "magpie",
			Subsystem: "acquire",
			Name:      "ram_overflows_total",
			Help:      "Captures that filled acquisition RAM.",
		},
	)
	recalibrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "magpie",
			Subsystem: "acquire",
			Name:      "recalibrations_total",
			Help:      "Recalibration attempts by result.",
		},
		[]string{"result"},
	)
	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "magpie",
			Subsystem: "acquire",
			Name:      "runs_total",
			Help:      "Finished acquisition runs by outcome.",
		},
		[]string{"outcome"},
	)
	stateGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "magpie",
			Subsystem: "acquire",
			Name:      "state",
			Help:      "Current step of the acquisition sequence.",
		},
	)
	rpmGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "magpie",
			Subsystem: "acquire",
			Name:      "index_rpm",
			Help:      "Last measured disc rotation speed.",
		},
	)
)

// RegisterMetrics registers the acquisition metrics with the default
// prometheus registry. It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, bytesTotal, ramOverflows,
			recalibrations, runs, stateGauge, rpmGauge)
	})
}

//
func recordFrame(bytes int) {
	RegisterMetrics()
	framesTotal.Inc()
	bytesTotal.Add(float64(bytes))
}

//
func recordRecalibration(ok bool) {
	RegisterMetrics()
	if ok {
		recalibrations.WithLabelValues("ok").Inc()
	} else {
		recalibrations.WithLabelValues("failed").Inc()
	}
}
