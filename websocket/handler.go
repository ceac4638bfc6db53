package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a tile query handler bound to one client connection.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a line collision query.
	HandleLine(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a sphere collision query.
	HandleSphere(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to drop the reference held on a tile.
	HandleRelease(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to send outgoing messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Get ClientID
	GetClientID() string
}

// Handle serves conn with h until the client disconnects, stays idle for too
// long, or ctx is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The query handler.
	Handler Handler

	done           <-chan struct{}
	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.done = ctx.Done()
	h.disconnectChan = make(chan error, 1)
	h.sendChan = make(chan Msg, sendChanSize)
	h.receiveChan = make(chan Msg, receiveChanSize)
	h.sender = h.Handler.Sender()
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	err := h.serve(ctx)
	h.handleDisconnect(err)
}

func (h *handler) serve(ctx context.Context) error {
	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	responder := responseSender{
		send: h.send,
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idleTimer.C:
			return errors.New("idle connection").WithTag("duration", idleTimeout)

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				return errors.New("handling message failed").Wrap(err)
			}

		case err := <-h.disconnectChan:
			return err
		}
	}
}

func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:
	case <-h.done:
	}
}

func (h *handler) startSending(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		msg, _, err := h.receiver()
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case h.receiveChan <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	switch msg.Type {
	case MsgTypePing:
		return h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeLine:
		return h.Handler.HandleLine(ctx, responder, msg)

	case MsgTypeSphere:
		return h.Handler.HandleSphere(ctx, responder, msg)

	case MsgTypeRelease:
		return h.Handler.HandleRelease(ctx, responder, msg)

	default:
		logs.WithTag(clientIDTag, h.Handler.GetClientID()).
			WithTag("msg_type", msg.Type).
			Debug("unsupported message")

		responder.Send(errorMsg(msg.RequestID, errors.New("unsupported message type").
			WithType(ErrTypeMsgUnsupported).
			WithTag("msg_type", msg.Type)))
		return nil
	}
}

// disconnect reports the first error that ends the connection. Later ones are
// dropped.
func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.send(msg)
}
