package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// ingestTotal counts trackpoints persisted by decoder.
	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpoints_ingested_total",
			Help: "Trackpoints written to the store.",
		},
		[]string{"decoder"},
	)

	// duplicateTotal counts payloads whose (datalogger, time) already existed.
	duplicateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpoints_duplicate_total",
			Help: "Payloads matching an already stored trackpoint.",
		},
		[]string{"decoder"},
	)

	// invalidTotal counts payloads rejected by validation, by reason.
	invalidTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpoints_invalid_total",
			Help: "Payloads rejected by validation.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(ingestTotal, duplicateTotal, invalidTotal)
}
