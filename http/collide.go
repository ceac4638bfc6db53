package http

import (
	"io"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/lyndon/punani-strike/query"
	"github.com/lyndon/punani-strike/tile"
	"github.com/segmentio/encoding/json"
)

const maxQuerySize = 64 << 10

// HeaderClientID is the request header clients identify themselves with.
const HeaderClientID = "X-Client-Id"

// Tiles is where query handlers acquire the tiles they query.
type Tiles interface {
	Acquire(path string) (*tile.Handle, error)
	Release(h *tile.Handle)
}

// HandleCollideLine answers a JSON encoded query.Line with a query.Result.
func HandleCollideLine(tiles Tiles) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q query.Line
		if err := decodeQuery(r, &q); err != nil {
			writeError(w, r, err)
			return
		}
		if err := q.Validate(); err != nil {
			writeError(w, r, err)
			return
		}

		runQuery(w, r, tiles, q.Tile, q.Run)
	}
}

// HandleCollideSphere answers a JSON encoded query.Sphere with a
// query.Result.
func HandleCollideSphere(tiles Tiles) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q query.Sphere
		if err := decodeQuery(r, &q); err != nil {
			writeError(w, r, err)
			return
		}
		if err := q.Validate(); err != nil {
			writeError(w, r, err)
			return
		}

		runQuery(w, r, tiles, q.Tile, q.Run)
	}
}

func runQuery(w http.ResponseWriter, r *http.Request, tiles Tiles, path string, run func(*tile.Tile) query.Result) {
	h, err := tiles.Acquire(path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer tiles.Release(h)

	writeJSON(w, http.StatusOK, run(h.Tile))
}

func decodeQuery(r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxQuerySize))
	if err != nil {
		return errors.New("reading body failed").
			WithType(query.ErrTypeInvalid).
			Wrap(err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.New("decoding query failed").
			WithType(query.ErrTypeInvalid).
			Wrap(err)
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	entry := logs.WithTag("client_id", r.Header.Get(HeaderClientID)).
		WithTag("path", r.URL.Path).
		WithTag("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(err)
	} else {
		entry.Debug(err)
	}

	writeJSON(w, status, query.NewError(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// StatusOf returns the HTTP status code that reports err.
func StatusOf(err error) int {
	switch errors.Type(err) {
	case query.ErrTypeInvalid:
		return http.StatusBadRequest

	case tile.ErrTypeIOFailure:
		return http.StatusNotFound

	case tile.ErrTypeBadMagic,
		tile.ErrTypeCorruptFile,
		tile.ErrTypeAssetResolutionFailed:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
