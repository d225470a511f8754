// ABOUTME: Playsync wire protocol package
// ABOUTME: Defines snapshot messages and the WebSocket client that carries them
// Package protocol implements the playsync wire protocol.
//
// Provides message types for saving and polling playback snapshots, and a
// WebSocket client that feeds server snapshots to the reconciliation core.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{
//	    ServerAddr: "localhost:8928",
//	    ClientID:   uuid.New().String(),
//	    UserID:     "alice",
//	})
//	err := client.Connect()
//	err = client.Poll()
//	snapshot := <-client.Snapshots
package protocol
