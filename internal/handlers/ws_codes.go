// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the raw lobby transport.
const (
	BadSubprotocolError = 3000 // Client connected without the "lobby" subprotocol.
	SlowConsumerError   = 3001 // Outbound queue overflowed; the client stopped reading.
)
