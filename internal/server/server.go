// ABOUTME: Snapshot server for the playsync protocol
// ABOUTME: Manages WebSocket connections, snapshot saves, polls and Listen Together fan-out
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/playsync/internal/discovery"
	"github.com/Resonate-Protocol/playsync/internal/store"
	"github.com/Resonate-Protocol/playsync/pkg/protocol"
	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ProtocolVersion is sent in server/hello
const ProtocolVersion = 1

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	UseTUI     bool
}

// Server stores playback snapshots and serves them to players
type Server struct {
	config   Config
	serverID string
	store    store.Store

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	tui       *ServerTUI
	startTime time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected player
type Client struct {
	ID     string
	UserID string
	Name   string
	Conn   *websocket.Conn

	// State
	Saves    int
	Polls    int
	LastSeen time.Time

	sendChan chan interface{}
	mu       sync.RWMutex
}

// New creates a new server instance backed by st
func New(config Config, st store.Store) *Server {
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		store:    st,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Players are native clients on a trusted LAN; browsers are accepted but logged
				if origin := r.Header.Get("Origin"); origin != "" {
					log.Printf("Accepting WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		clients:   make(map[string]*Client),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// Handler exposes the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ID returns the server id sent in server/hello
func (s *Server) ID() string {
	return s.serverID
}

// Start runs the server until Stop, a TUI quit, or a listener error
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI(s.config.Name, s.config.Port)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			ServerMode:  true,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s%s", addr, protocol.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	s.updateTUI()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.closeClients()
	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// closeClients drops hijacked WebSocket connections that Shutdown does not track
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if env.Type != protocol.TypeClientHello {
		log.Printf("Expected client/hello, got %s", env.Type)
		return
	}

	var hello protocol.ClientHello
	if err := env.Decode(&hello); err != nil {
		log.Printf("Error decoding client hello: %v", err)
		return
	}

	if hello.ClientID == "" || hello.UserID == "" {
		log.Printf("Client hello missing client_id or user_id")
		writeError(conn, "invalid_hello", "client_id and user_id are required")
		return
	}

	log.Printf("Client hello: %s (ID: %s, user: %s)", hello.Name, hello.ClientID, hello.UserID)

	client := &Client{
		ID:       hello.ClientID,
		UserID:   hello.UserID,
		Name:     hello.Name,
		Conn:     conn,
		LastSeen: time.Now(),
		sendChan: make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)
		writeError(conn, "duplicate_client_id", "Client ID already connected")
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	s.updateTUI()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		s.clientsMu.Unlock()
		log.Printf("Client disconnected: %s", client.Name)
		s.updateTUI()
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
	}
	if err := s.sendMessage(client, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleClientMessage(client, data)
	}
}

// writeError sends server/error directly, used before the writer goroutine exists
func writeError(conn *websocket.Conn, code, message string) {
	msg := protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ErrorMessage{Code: code, Message: message},
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error writing server error: %v", err)
	}
}

// clientWriter sends queued messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing text message: %v", err)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	client.mu.Lock()
	client.LastSeen = time.Now()
	client.mu.Unlock()

	switch env.Type {
	case protocol.TypeClientTime:
		s.handleTimeSync(client, env)
	case protocol.TypeClientSave:
		s.handleSave(client, env)
	case protocol.TypeClientPoll:
		s.handlePoll(client)
	default:
		log.Printf("Unknown message type: %s", env.Type)
	}
}

// handleTimeSync responds to time synchronization requests
func (s *Server) handleTimeSync(client *Client, env protocol.Envelope) {
	serverRecv := time.Now().UnixMicro()

	var clientTime protocol.ClientTime
	if err := env.Decode(&clientTime); err != nil {
		log.Printf("Error decoding client time: %v", err)
		return
	}

	serverSend := time.Now().UnixMicro()

	if s.config.Debug {
		log.Printf("[DEBUG] Time sync for %s: t1=%d, t2=%d, t3=%d",
			client.Name, clientTime.ClientTransmitted, serverRecv, serverSend)
	}

	response := protocol.ServerTime{
		ClientTransmitted: clientTime.ClientTransmitted,
		ServerReceived:    serverRecv,
		ServerTransmitted: serverSend,
	}
	if err := s.sendMessage(client, protocol.TypeServerTime, response); err != nil {
		log.Printf("Error sending server time: %v", err)
	}
}

// handleSave stores the client's state, acks it and pushes it to the user's other players
func (s *Server) handleSave(client *Client, env protocol.Envelope) {
	var save protocol.PlaybackSave
	if err := env.Decode(&save); err != nil {
		log.Printf("Error decoding save from %s: %v", client.Name, err)
		s.sendMessage(client, protocol.TypeServerError, protocol.ErrorMessage{Code: "invalid_save", Message: err.Error()})
		return
	}

	snap := store.Snapshot{
		UserID:         client.UserID,
		PlaybackType:   save.PlaybackType,
		MediaID:        save.MediaID,
		Queue:          save.Queue,
		QueueIndex:     reconcile.ClampQueueIndex(save.QueueIndex, len(save.Queue)),
		PositionSec:    clampPosition(save.PositionSec),
		ShouldPlay:     save.ShouldPlay,
		OriginClientID: client.ID,
	}

	saved, err := s.store.Save(context.Background(), snap)
	if err != nil {
		log.Printf("Error saving snapshot for %s: %v", client.UserID, err)
		s.sendMessage(client, protocol.TypeServerError, protocol.ErrorMessage{Code: "save_failed", Message: "snapshot could not be stored"})
		return
	}

	client.mu.Lock()
	client.Saves++
	client.mu.Unlock()

	if s.config.Debug {
		log.Printf("[DEBUG] Saved snapshot for %s from %s: media=%s updated_at=%d",
			client.UserID, client.Name, saved.MediaID, saved.UpdatedAtMs)
	}

	if err := s.sendMessage(client, protocol.TypeServerSaved, protocol.SaveAck{UpdatedAt: saved.UpdatedAtMs}); err != nil {
		log.Printf("Error sending save ack: %v", err)
	}

	s.broadcast(client, snapshotMessage(saved))
	s.updateTUI()
}

// handlePoll replies with the user's stored snapshot
func (s *Server) handlePoll(client *Client) {
	client.mu.Lock()
	client.Polls++
	client.mu.Unlock()

	snap, err := s.store.Load(context.Background(), client.UserID)
	if errors.Is(err, store.ErrNotFound) {
		s.sendMessage(client, protocol.TypeServerSnapshot, protocol.PlaybackSnapshot{Found: false})
		return
	}
	if err != nil {
		log.Printf("Error loading snapshot for %s: %v", client.UserID, err)
		s.sendMessage(client, protocol.TypeServerError, protocol.ErrorMessage{Code: "load_failed", Message: "snapshot could not be loaded"})
		return
	}

	if err := s.sendMessage(client, protocol.TypeServerSnapshot, snapshotMessage(snap)); err != nil {
		log.Printf("Error sending snapshot: %v", err)
	}
}

// broadcast pushes a snapshot to every other client of the origin's user
func (s *Server) broadcast(origin *Client, snapshot protocol.PlaybackSnapshot) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, peer := range s.clients {
		if peer.ID == origin.ID || peer.UserID != origin.UserID {
			continue
		}
		if err := s.sendMessage(peer, protocol.TypeServerSnapshot, snapshot); err != nil {
			log.Printf("Error pushing snapshot to %s: %v", peer.Name, err)
		}
	}
}

// clampPosition keeps stored positions finite and non-negative
func clampPosition(sec float64) float64 {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		return 0
	}
	return sec
}

// snapshotMessage converts a stored snapshot to its wire form
func snapshotMessage(snap store.Snapshot) protocol.PlaybackSnapshot {
	return protocol.PlaybackSnapshot{
		Found:          true,
		PlaybackType:   snap.PlaybackType,
		MediaID:        snap.MediaID,
		Queue:          snap.Queue,
		QueueIndex:     snap.QueueIndex,
		PositionSec:    snap.PositionSec,
		ShouldPlay:     snap.ShouldPlay,
		UpdatedAt:      snap.UpdatedAtMs,
		OriginClientID: snap.OriginClientID,
	}
}

// sendMessage queues a JSON message for a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}
