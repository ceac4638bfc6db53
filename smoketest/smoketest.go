// Package smoketest probes loaded tiles end to end: every tile is acquired
// and a vertical line is fired through each of its items.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/lyndon/punani-strike/tile"
	"github.com/lyndon/punani-strike/vec"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// probeHeight is how far above and below the ground the probe line reaches.
const probeHeight = 1 << 14

// Tiles is where the smoke test acquires the tiles it probes.
type Tiles interface {
	Acquire(path string) (*tile.Handle, error)
	Release(h *tile.Handle)
}

type Options struct {
	// The registry probed tiles are acquired from.
	Tiles Tiles

	// The tiles probed when a request does not name any.
	Paths []string

	// The maximum duration of a run. No limit when zero.
	Timeout time.Duration

	// Reports the results of a run started by the handler.
	SendResult func(context.Context, Results) error
}

// Request optionally overrides the tiles to probe.
type Request struct {
	Tiles []string `json:"tiles,omitempty"`
}

type Results struct {
	Status          string       `json:"status"`
	LatencyMilliSec float64      `json:"latency_ms"`
	Tiles           []TileResult `json:"tiles"`
}

type TileResult struct {
	Tile   string `json:"tile"`
	Status string `json:"status"`
	Items  int    `json:"items"`
	Hits   int    `json:"hits"`
	Error  string `json:"error,omitempty"`
}

// HandleSmokeTest starts a run in the background and answers right away. The
// results are handed to opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				logs.WithTag("body_size", len(b)).
					Debug(errors.New("decoding smoke test request failed").Wrap(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		paths := req.Tiles
		if len(paths) == 0 {
			paths = opts.Paths
		}

		go func() {
			runCtx := ctx
			if opts.Timeout > 0 {
				var cancel func()
				runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			res := Run(runCtx, opts.Tiles, paths)
			if res.Status != StatusSuccess {
				logs.WithTag("status", res.Status).
					WithTag("tiles", len(res.Tiles)).
					Warn(errors.New("smoke test did not succeed"))
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("status", res.Status).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run probes paths in order. The run succeeds when every tile could be
// acquired.
func Run(ctx context.Context, tiles Tiles, paths []string) Results {
	start := time.Now()
	res := Results{
		Status: StatusSuccess,
		Tiles:  make([]TileResult, 0, len(paths)),
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			res.Status = StatusCanceled
			break
		}

		tr := probe(tiles, path)
		if tr.Status != StatusSuccess {
			res.Status = StatusFailed
		}
		res.Tiles = append(res.Tiles, tr)
	}

	res.LatencyMilliSec = float64(time.Since(start)) / float64(time.Millisecond)
	return res
}

func probe(tiles Tiles, path string) TileResult {
	res := TileResult{
		Tile: path,
	}

	h, err := tiles.Acquire(path)
	if err != nil {
		res.Status = StatusFailed
		res.Error = errors.Type(err)
		return res
	}
	defer tiles.Release(h)

	items := h.Items()
	res.Items = len(items)
	res.Status = StatusSuccess

	for _, item := range items {
		offset := item.Offset()
		top := vec.Add(offset, vec.New(0, probeHeight, 0))
		bottom := vec.Add(offset, vec.New(0, -probeHeight, 0))

		if _, ok := h.CollideLine(top, bottom); ok {
			res.Hits++
		}
	}
	return res
}
