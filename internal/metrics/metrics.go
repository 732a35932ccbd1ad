package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion outcome label values
const (
	OutcomeIngested         = "ingested"
	OutcomeValidationFailed = "validation_failed"
	OutcomeStoreFailed      = "store_failed"
)

var (
	// IngestsTotal counts ingestion requests by outcome. Annotation and
	// thumbnail failures still count as ingested; they degrade the item,
	// not the request.
	IngestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vision_catalog",
		Name:      "ingests_total",
		Help:      "Ingestion requests by outcome.",
	}, []string{"outcome"})

	// AnnotationFailuresTotal counts annotation service failures absorbed
	// by the pipeline.
	AnnotationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vision_catalog",
		Name:      "annotation_failures_total",
		Help:      "Annotation service failures absorbed during ingestion.",
	})

	// ThumbnailFailuresTotal counts thumbnail derivation or storage
	// failures absorbed by the pipeline.
	ThumbnailFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vision_catalog",
		Name:      "thumbnail_failures_total",
		Help:      "Thumbnail failures absorbed during ingestion.",
	})

	// SearchesTotal counts catalog search requests.
	SearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vision_catalog",
		Name:      "searches_total",
		Help:      "Catalog search requests.",
	})
)
