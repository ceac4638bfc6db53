package websocket

import (
	"testing"
	"time"

	"github.com/lyndon/punani-strike/asset"
	"github.com/lyndon/punani-strike/blob"
	"github.com/lyndon/punani-strike/query"
	"github.com/lyndon/punani-strike/tile"
	"github.com/lyndon/punani-strike/vec"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestTiles(t *testing.T) *tile.Registry {
	c, err := asset.ParseCatalog([]byte(`
assets:
  - name: hut
    min: [-1, 0, -1]
    max: [1, 2, 1]
`))
	require.NoError(t, err)

	loader := blob.NewMemoryLoader()
	for path, placements := range map[string][]tile.Placement{
		"town.pst":   {{Asset: "hut", X: 0, Y: 0}, {Asset: "hut", X: 5, Y: 0}},
		"forest.pst": {{Asset: "hut", X: 0, Y: 10}},
	} {
		data, err := tile.Encode(tile.NewFile(placements))
		require.NoError(t, err)
		loader.Set(path, data)
	}

	return &tile.Registry{
		Loader: loader,
		Assets: asset.NewLibrary(c),
	}
}

func lineMsg(requestID uint32, path string) Msg {
	return Msg{
		Type:      MsgTypeLine,
		RequestID: requestID,
		Line: &query.Line{
			Tile:  path,
			Start: vec.New(-10, 1, 0),
			End:   vec.New(10, 1, 0),
		},
	}
}

func requireReleased(t *testing.T, tiles *tile.Registry) {
	require.Eventually(t, func() bool {
		return tiles.Len() == 0
	}, time.Second, time.Millisecond*10)
}

func TestQueryHandler(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, _, close := NewTestingEnv(t, NewTestHandler(tiles, time.Minute))
		defer close()

		res := SendTestMsg(t, clientA, Msg{Type: MsgTypePing, RequestID: 42})
		require.Equal(t, MsgTypePong, res.Type)
		require.Equal(t, uint32(42), res.RequestID)
	})

	t.Run("line query", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, _, close := NewTestingEnv(t, NewTestHandler(tiles, time.Minute))
		defer close()

		res := SendTestMsg(t, clientA, lineMsg(1, "town.pst"))
		require.Equal(t, MsgTypeResult, res.Type)
		require.Equal(t, uint32(1), res.RequestID)
		require.NotNil(t, res.Result)
		require.True(t, res.Result.Hit)
		require.True(t, res.Result.Point.EqualWithEpsilon(vec.New(-1, 1, 0), 1e-5))
		require.Equal(t, 1, tiles.Refs("town.pst"))

		res = SendTestMsg(t, clientA, lineMsg(2, "town.pst"))
		require.Equal(t, MsgTypeResult, res.Type)
		require.Equal(t, 1, tiles.Refs("town.pst"))
	})

	t.Run("sphere query", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, _, close := NewTestingEnv(t, NewTestHandler(tiles, time.Minute))
		defer close()

		res := SendTestMsg(t, clientA, Msg{
			Type:      MsgTypeSphere,
			RequestID: 3,
			Sphere: &query.Sphere{
				Tile:   "forest.pst",
				Center: vec.New(0, 5, 10),
				Radius: 4,
			},
		})
		require.Equal(t, MsgTypeResult, res.Type)
		require.True(t, res.Result.Hit)
		require.True(t, res.Result.Point.EqualWithEpsilon(vec.New(0, 2, 10), 1e-5))
	})

	t.Run("clients share tiles", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, clientB, close := NewTestingEnv(t, NewTestHandler(tiles, time.Minute))
		defer close()

		SendTestMsg(t, clientA, lineMsg(1, "town.pst"))
		SendTestMsg(t, clientB, lineMsg(1, "town.pst"))
		require.Equal(t, 2, tiles.Refs("town.pst"))

		clientA.Close()
		require.Eventually(t, func() bool {
			return tiles.Refs("town.pst") == 1
		}, time.Second, time.Millisecond*10)

		clientB.Close()
		requireReleased(t, tiles)
	})

	t.Run("release", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, _, close := NewTestingEnv(t, NewTestHandler(tiles, time.Minute))
		defer close()

		SendTestMsg(t, clientA, lineMsg(1, "town.pst"))
		SendTestMsg(t, clientA, lineMsg(2, "forest.pst"))
		require.Equal(t, 2, tiles.Len())

		res := SendTestMsg(t, clientA, Msg{Type: MsgTypeRelease, RequestID: 3, Tile: "town.pst"})
		require.Equal(t, MsgTypeReleased, res.Type)
		require.Equal(t, "town.pst", res.Tile)
		require.Equal(t, []string{"forest.pst"}, tiles.Paths())

		res = SendTestMsg(t, clientA, Msg{Type: MsgTypeRelease, RequestID: 4, Tile: "town.pst"})
		require.Equal(t, MsgTypeError, res.Type)
		require.Equal(t, ErrTypeTileNotHeld, res.Error.Type)
	})

	t.Run("query errors keep the connection open", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, _, close := NewTestingEnv(t, NewTestHandler(tiles, time.Minute))
		defer close()

		res := SendTestMsg(t, clientA, lineMsg(1, "missing.pst"))
		require.Equal(t, MsgTypeError, res.Type)
		require.Equal(t, uint32(1), res.RequestID)
		require.Equal(t, tile.ErrTypeIOFailure, res.Error.Type)

		res = SendTestMsg(t, clientA, lineMsg(2, "../town.pst"))
		require.Equal(t, MsgTypeError, res.Type)
		require.Equal(t, query.ErrTypeInvalid, res.Error.Type)

		res = SendTestMsg(t, clientA, Msg{Type: MsgTypeSphere, RequestID: 3})
		require.Equal(t, MsgTypeError, res.Type)
		require.Equal(t, query.ErrTypeInvalid, res.Error.Type)

		res = SendTestMsg(t, clientA, Msg{Type: "teleport", RequestID: 4})
		require.Equal(t, MsgTypeError, res.Type)
		require.Equal(t, ErrTypeMsgUnsupported, res.Error.Type)

		res = SendTestMsg(t, clientA, Msg{Type: MsgTypePing, RequestID: 5})
		require.Equal(t, MsgTypePong, res.Type)
		require.Zero(t, tiles.Len())
	})

	t.Run("malformed message disconnects", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, _, close := NewTestingEnv(t, NewTestHandler(tiles, time.Minute))
		defer close()

		SendTestMsg(t, clientA, lineMsg(1, "town.pst"))
		require.NoError(t, websocket.Message.Send(clientA, "{not json"))

		clientA.SetReadDeadline(time.Now().Add(time.Second))
		var data []byte
		require.Error(t, websocket.Message.Receive(clientA, &data))
		requireReleased(t, tiles)
	})

	t.Run("idle client is disconnected", func(t *testing.T) {
		tiles := newTestTiles(t)
		clientA, _, close := NewTestingEnv(t, NewTestHandler(tiles, time.Millisecond*200))
		defer close()

		SendTestMsg(t, clientA, lineMsg(1, "town.pst"))
		requireReleased(t, tiles)

		clientA.SetReadDeadline(time.Now().Add(time.Second))
		var data []byte
		require.Error(t, websocket.Message.Receive(clientA, &data))
	})
}

func TestQueryHandlerIdleTimeout(t *testing.T) {
	require.Equal(t, defaultIdleTimeout, (&QueryHandler{}).IdleTimeout())
	require.Equal(t, time.Second, (&QueryHandler{ClientIdleTimeout: time.Second}).IdleTimeout())
}

func TestKnownMsgType(t *testing.T) {
	require.Equal(t, MsgTypeLine, knownMsgType(MsgTypeLine))
	require.Equal(t, "unknown", knownMsgType("teleport"))
}
