package metrics

import "github.com/prometheus/client_golang/prometheus"

func registerGateMetrics(gate GateStats) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "uploads_inflight",
			Help: "Currently in-flight store uploads",
		},
		func() float64 {
			return float64(gate.Inflight())
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "uploads_inflight_limit",
			Help: "Configured concurrency gate limit",
		},
		func() float64 {
			return float64(gate.Limit())
		},
	))
}
