package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/lyndon/punani-strike/asset"
	"github.com/lyndon/punani-strike/blob"
	"github.com/lyndon/punani-strike/featureflag"
	tilehttp "github.com/lyndon/punani-strike/http"
	"github.com/lyndon/punani-strike/smoketest"
	"github.com/lyndon/punani-strike/tile"
	twebsocket "github.com/lyndon/punani-strike/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The tile server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "tilesrv_info",
		Help:        "Tile server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// Keeps the config field names intact under obfuscating builds so the cli
// options stay readable.
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"TILESRV_ADDR"                 help:"Listening address for query clients."`
	AdminAddr          string        `cli:""        env:"TILESRV_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"TILESRV_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"TILESRV_LOG_INDENT"           help:"Indent logs."`
	AssetCatalog       string        `cli:""        env:"TILESRV_ASSET_CATALOG"        help:"The YAML file that describes the collision assets."`
	TileRoot           string        `cli:""        env:"TILESRV_TILE_ROOT"            help:"The directory tile paths are resolved against."`
	Tiles              []string      `cli:""        env:"TILESRV_TILES"                help:"Comma separated tiles loaded at startup and probed by the smoke test."`
	MaxTileSize        int           `cli:""        env:"TILESRV_MAX_TILE_SIZE"        help:"The maximum size in bytes of a decompressed tile file."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"TILESRV_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle websocket client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"TILESRV_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	SmokeTestTimeout   time.Duration `cli:",hidden" env:"TILESRV_SMOKE_TEST_TIMEOUT"   help:"The maximum duration of a smoke test run."`
	Events             eventsConfig  `cli:",hidden" env:"-"                            help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"TILESRV_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                            help:"Show version."`
	Help               bool          `cli:""        env:"-"                            help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"TILESRV_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Events are disabled when empty."`
	FlushInterval time.Duration `cli:",hidden" env:"TILESRV_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"TILESRV_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"TILESRV_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		LogLevel:           logs.InfoLevel.String(),
		AssetCatalog:       "assets.yaml",
		TileRoot:           "tiles",
		MaxTileSize:        blob.DefaultMaxSize,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		SmokeTestTimeout:   time.Second * 30,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the tile collision server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "tilesrv",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	if unknown := featureFlags.Unknown(); len(unknown) != 0 {
		logs.WithTag("feature_flags", unknown).
			Warn(errors.New("unknown feature flags are ignored"))
	}

	catalog, err := asset.LoadCatalog(conf.AssetCatalog)
	if err != nil {
		logs.Fatal(errors.New("loading asset catalog failed").Wrap(err))
	}

	registry := &tile.Registry{
		Loader: &blob.FileLoader{
			Root:    conf.TileRoot,
			MaxSize: int64(conf.MaxTileSize),
		},
		Assets: asset.NewLibrary(catalog),
	}
	defer registry.Close()

	var ready atomic.Bool
	readinessCheck := ready.Load

	var preloaded []*tile.Handle
	featureFlags.IfNotSet(featureflag.FlagDisableTilePreload, func() {
		preloaded = preloadTiles(registry, conf.Tiles)
	})
	defer func() {
		for _, h := range preloaded {
			registry.Release(h)
		}
	}()
	ready.Store(true)

	var service http.ServeMux
	service.Handle("/health", tilehttp.HandleWithCORS(http.HandlerFunc(tilehttp.HandleHealthCheck)))
	service.Handle("/version", tilehttp.HandleWithCORS(tilehttp.HandleVersion(version)))
	service.Handle("/ready", tilehttp.HandleWithCORS(tilehttp.HandleReadyCheck(readinessCheck)))

	httpTiles := &tilehttp.ResidentTiles{Tiles: registry}
	defer httpTiles.Close()

	featureFlags.IfNotSet(featureflag.FlagDisableHTTPQueries, func() {
		service.Handle("/collide/line", tilehttp.HandleWithCORS(tilehttp.HandleCollideLine(httpTiles)))
		service.Handle("/collide/sphere", tilehttp.HandleWithCORS(tilehttp.HandleCollideSphere(httpTiles)))
	})

	var wsConns twebsocket.Conns
	newQueryHandler := func() twebsocket.Handler {
		var h twebsocket.Handler = &twebsocket.QueryHandler{
			Tiles:             registry,
			ClientIdleTimeout: conf.ClientIdleTimeout,
		}
		h = twebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
		return twebsocket.HandlerWithMetrics(h)
	}

	featureFlags.IfNotSet(featureflag.FlagDisableWebsocketQueries, func() {
		service.Handle("/ws", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				wsConns.Serve(ctx, conn, newQueryHandler)
			},
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", tilehttp.HandleHealthCheck)
	admin.HandleFunc("/ready", tilehttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/version", tilehttp.HandleVersion(version))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))

	featureFlags.IfNotSet(featureflag.FlagDisableSmokeTest, func() {
		admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
			Tiles:   registry,
			Paths:   conf.Tiles,
			Timeout: conf.SmokeTestTimeout,
			SendResult: func(_ context.Context, res smoketest.Results) error {
				logs.WithTag("status", res.Status).
					WithTag("latency_ms", res.LatencyMilliSec).
					WithTag("tiles", res.Tiles).
					Info("smoke test finished")
				return nil
			},
		}))
	})

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("tile_root", conf.TileRoot).
		WithTag("asset_catalog", conf.AssetCatalog).
		WithTag("assets", len(catalog.Assets)).
		WithTag("preloaded_tiles", len(preloaded)).
		Info("starting tile server")

	tilehttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			tilehttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	// Websocket connections are hijacked and outlive the servers. They must be
	// done querying before the deferred registry close unloads their tiles.
	wsConns.Wait()
}

// preloadTiles acquires the configured tiles so that they stay loaded for the
// lifetime of the server.
func preloadTiles(registry *tile.Registry, paths []string) []*tile.Handle {
	handles := make([]*tile.Handle, 0, len(paths))
	for _, path := range paths {
		h, err := registry.Acquire(path)
		if err != nil {
			logs.Fatal(errors.New("preloading tile failed").
				WithTag("path", path).
				Wrap(err))
		}
		handles = append(handles, h)
	}
	return handles
}

func validateConfig(conf config) error {
	if conf.AssetCatalog == "" {
		return errors.New("missing asset catalog")
	}

	if conf.MaxTileSize <= 0 {
		return errors.New("max tile size must be positive").
			WithTag("max_tile_size", conf.MaxTileSize)
	}

	if conf.ClientIdleTimeout <= 0 {
		return errors.New("client idle timeout must be positive").
			WithTag("client_idle_timeout", conf.ClientIdleTimeout)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	for _, path := range conf.Tiles {
		if path == "" {
			return errors.New("empty tile path in preloaded tiles")
		}
	}

	return nil
}
