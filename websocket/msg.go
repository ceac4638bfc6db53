package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/lyndon/punani-strike/query"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	MsgTypePing     = "ping"
	MsgTypePong     = "pong"
	MsgTypeLine     = "line"
	MsgTypeSphere   = "sphere"
	MsgTypeRelease  = "release"
	MsgTypeReleased = "released"
	MsgTypeResult   = "result"
	MsgTypeError    = "error"
)

const (
	ErrTypeMsgDecode      = "ws-msg-decode"
	ErrTypeMsgEncode      = "ws-msg-encode"
	ErrTypeMsgUnsupported = "ws-msg-unsupported"
	ErrTypeTileNotHeld    = "ws-tile-not-held"
)

// Msg is the JSON message exchanged with clients. Which optional field is set
// depends on Type.
type Msg struct {
	Type      string        `json:"type"`
	RequestID uint32        `json:"request_id,omitempty"`
	Tile      string        `json:"tile,omitempty"`
	Line      *query.Line   `json:"line,omitempty"`
	Sphere    *query.Sphere `json:"sphere,omitempty"`
	Result    *query.Result `json:"result,omitempty"`
	Error     *query.Error  `json:"error,omitempty"`
}

// Receiver receives the next message and the number of bytes it was encoded
// in.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages for the connected client.
type ResponseSender interface {
	Send(Msg)
}

func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeMsgDecode).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

func NewSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithType(ErrTypeMsgEncode).
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

func errorMsg(requestID uint32, err error) Msg {
	e := query.NewError(err)
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Error:     &e,
	}
}
