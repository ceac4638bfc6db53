package blob

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	formatLabel  = "format"
)

var (
	blobLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blob_loads",
		Help: "The number of blobs loaded from disk.",
	}, []string{
		formatLabel,
	})

	blobLoadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blob_load_errors",
		Help: "The errors that occured while loading a blob.",
	}, []string{
		formatLabel,
		errTypeLabel,
	})

	blobLoadedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blob_loaded_bytes",
		Help: "The number of bytes held by loaded blobs that were not released yet.",
	})
)

func instrumentLoad(format string, size int) {
	blobLoads.With(prometheus.Labels{
		formatLabel: format,
	}).Inc()

	blobLoadedBytes.Add(float64(size))
}

func instrumentLoadError(format string, err error) {
	blobLoadErrors.
		With(prometheus.Labels{
			formatLabel:  format,
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

func instrumentRelease(size int) {
	blobLoadedBytes.Sub(float64(size))
}
