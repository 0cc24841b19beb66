// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes. These provide more specific reasons for
// closure than the standard codes.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client connected without the pairline subprotocol.
	SlowConsumerError   websocket.StatusCode = 3002 // Writes to the client kept timing out.
)
