// Package websocket provides real-time event streaming via WebSocket.
//
// Clients connect to /api/v1/pipeline/ws to receive pipeline and step
// events of the current run as they happen.
package websocket
