package asset

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	assetCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asset_count",
		Help: "The number of assets referenced by at least one holder.",
	})

	assetResolveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_resolve_errors",
		Help: "The errors that occured while resolving an asset.",
	}, []string{
		errTypeLabel,
	})
)

func instrumentIncreaseAssetGauge() {
	assetCount.Inc()
}

func instrumentDecreaseAssetGauge() {
	assetCount.Dec()
}

func instrumentResolveError(err error) {
	assetResolveErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
