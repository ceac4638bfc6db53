package featureflag

type Flag string

const (
	FlagDisableHTTPQueries      Flag = "DISABLE_HTTP_QUERIES"
	FlagDisableWebsocketQueries Flag = "DISABLE_WEBSOCKET_QUERIES"
	FlagDisableSmokeTest        Flag = "DISABLE_SMOKE_TEST"
	FlagDisableTilePreload      Flag = "DISABLE_TILE_PRELOAD"
)

var knownFlags = map[Flag]struct{}{
	FlagDisableHTTPQueries:      {},
	FlagDisableWebsocketQueries: {},
	FlagDisableSmokeTest:        {},
	FlagDisableTilePreload:      {},
}
