package ws

const (
	// client - server
	MsgPlay    = "play"
	MsgRefresh = "refresh"
	MsgPing    = "ping"

	// server - client
	MsgReady = "ready"
	MsgState = "state"
	MsgPong  = "pong"
	MsgError = "error"
)
