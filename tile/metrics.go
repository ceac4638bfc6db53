package tile

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	queryLabel   = "query"
	resultLabel  = "result"

	lineQuery   = "line"
	sphereQuery = "sphere"
)

var (
	tileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tile_count",
		Help: "The number of loaded tiles.",
	})

	tileLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tile_loads",
		Help: "The number of tiles loaded from their file.",
	})

	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tile_cache_hits",
		Help: "The number of tile acquisitions served by an already loaded tile.",
	})

	tileLoadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_load_errors",
		Help: "The errors that occured while loading a tile.",
	}, []string{
		errTypeLabel,
	})

	tileLoadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "tile_load_latency",
		Help: "The time to load and resolve a tile file.",
	})

	tileCollisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_collision_queries",
		Help: "The number of collision queries run against tiles.",
	}, []string{
		queryLabel,
		resultLabel,
	})
)

func instrumentIncreaseTileGauge() {
	tileCount.Inc()
}

func instrumentDecreaseTileGauge() {
	tileCount.Dec()
}

func instrumentCountLoad() {
	tileLoads.Inc()
}

func instrumentCacheHit() {
	tileCacheHits.Inc()
}

func instrumentLoadError(err error) {
	tileLoadErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

func instrumentLoadLatency(start time.Time) {
	tileLoadLatency.Observe(time.Since(start).Seconds())
}

func instrumentCollision(query string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	tileCollisions.WithLabelValues(query, result).Inc()
}
