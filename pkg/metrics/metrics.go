// Package metrics holds the exporter's prometheus counters. There is no HTTP
// endpoint; a run can dump the registry to a textfile for node_exporter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cwm"

// Registry collects every metric of this package.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	ChaptersExported = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chapters_exported_total",
			Help:      "Chapters written to an output target",
		},
		[]string{"kind"}, // "chapter" or "placeholder"
	)

	ChapterFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chapter_failures_total",
			Help:      "Chapters that could not be decrypted or parsed",
		},
	)

	KeysImported = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_imported_total",
			Help:      "Keys written to the key store",
		},
	)

	DecryptAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypt_attempts_total",
			Help:      "Single key decryption attempts",
		},
		[]string{"result"},
	)

	ImagesDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_dropped_total",
			Help:      "Images left out of a chapter because they could not be resolved",
		},
	)

	ImageFallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_fallbacks_total",
			Help:      "Fallback image conversions",
		},
		[]string{"result"},
	)

	BooksExported = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "books_exported_total",
			Help:      "Book exports by outcome",
		},
		[]string{"result"},
	)

	BookExportDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "book_export_duration_seconds",
			Help:      "Time spent exporting one book",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

// WriteTextfile dumps the registry in the text exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
