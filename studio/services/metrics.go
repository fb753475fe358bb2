package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entityCreateMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "studio_entity_create", Help: "Entity creations"})
	modelImportMetric  = promauto.NewSummary(prometheus.SummaryOpts{Name: "studio_model_import", Help: "Data model imports"})
	modelExportMetric  = promauto.NewSummary(prometheus.SummaryOpts{Name: "studio_model_export", Help: "Data model exports"})
	assistantMetric    = promauto.NewSummary(prometheus.SummaryOpts{Name: "studio_assistant_request", Help: "Assistant requests"})

	assistantFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "studio_assistant_failures", Help: "Assistant requests that failed upstream"})
)
