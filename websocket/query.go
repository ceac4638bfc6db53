package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/lyndon/punani-strike/query"
	"github.com/lyndon/punani-strike/tile"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the request header clients identify themselves with.
const HeaderClientID = "X-Client-Id"

const defaultIdleTimeout = time.Minute

// Tiles is where connections acquire the tiles they query.
type Tiles interface {
	Acquire(path string) (*tile.Handle, error)
	Release(h *tile.Handle)
}

// QueryHandler answers collision queries for one client. The first query on a
// tile acquires it and the connection keeps it until the client releases it
// or disconnects.
type QueryHandler struct {
	// The registry tiles are acquired from.
	Tiles Tiles

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	conn     *websocket.Conn
	clientID string

	mutex   sync.Mutex
	handles map[string]*tile.Handle
}

func (h *QueryHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *QueryHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *QueryHandler) HandleLine(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Line == nil {
		respond.Send(errorMsg(msg.RequestID, errors.New("missing line query").
			WithType(query.ErrTypeInvalid)))
		return nil
	}

	return h.run(respond, msg.RequestID, msg.Line.Tile, msg.Line.Validate, msg.Line.Run)
}

func (h *QueryHandler) HandleSphere(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Sphere == nil {
		respond.Send(errorMsg(msg.RequestID, errors.New("missing sphere query").
			WithType(query.ErrTypeInvalid)))
		return nil
	}

	return h.run(respond, msg.RequestID, msg.Sphere.Tile, msg.Sphere.Validate, msg.Sphere.Run)
}

func (h *QueryHandler) HandleRelease(ctx context.Context, respond ResponseSender, msg Msg) error {
	h.mutex.Lock()
	handle, ok := h.handles[msg.Tile]
	delete(h.handles, msg.Tile)
	h.mutex.Unlock()

	if !ok {
		respond.Send(errorMsg(msg.RequestID, errors.New("tile is not held").
			WithType(ErrTypeTileNotHeld).
			WithTag("tile", msg.Tile)))
		return nil
	}

	h.Tiles.Release(handle)
	respond.Send(Msg{
		Type:      MsgTypeReleased,
		RequestID: msg.RequestID,
		Tile:      msg.Tile,
	})
	return nil
}

func (h *QueryHandler) HandleDisconnect(err error) {
	h.releaseAll()
}

func (h *QueryHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

func (h *QueryHandler) Sender() Sender {
	return NewSender(h.conn)
}

func (h *QueryHandler) Close() {
	h.releaseAll()
}

func (h *QueryHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return defaultIdleTimeout
	}
	return h.ClientIdleTimeout
}

func (h *QueryHandler) GetClientID() string {
	return h.clientID
}

// Held returns the paths of the tiles the connection holds, sorted.
func (h *QueryHandler) Held() []string {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	paths := make([]string, 0, len(h.handles))
	for p := range h.handles {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (h *QueryHandler) run(respond ResponseSender, requestID uint32, path string, validate func() error, run func(*tile.Tile) query.Result) error {
	if err := validate(); err != nil {
		respond.Send(errorMsg(requestID, err))
		return nil
	}

	t, err := h.acquire(path)
	if err != nil {
		respond.Send(errorMsg(requestID, err))
		return nil
	}

	res := run(t)
	respond.Send(Msg{
		Type:      MsgTypeResult,
		RequestID: requestID,
		Result:    &res,
	})
	return nil
}

func (h *QueryHandler) acquire(path string) (*tile.Tile, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if handle, ok := h.handles[path]; ok {
		return handle.Tile, nil
	}

	handle, err := h.Tiles.Acquire(path)
	if err != nil {
		return nil, err
	}

	if h.handles == nil {
		h.handles = make(map[string]*tile.Handle)
	}
	h.handles[path] = handle
	return handle.Tile, nil
}

func (h *QueryHandler) releaseAll() {
	h.mutex.Lock()
	handles := h.handles
	h.handles = nil
	h.mutex.Unlock()

	for _, handle := range handles {
		h.Tiles.Release(handle)
	}
}
