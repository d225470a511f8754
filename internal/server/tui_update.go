// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send server state updates to TUI
package server

import (
	"context"
	"log"
	"sort"
	"time"
)

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	s.tui.Update(ServerStatus{
		Name:    s.config.Name,
		Port:    s.config.Port,
		Clients: s.clientInfos(),
		Users:   s.userInfos(),
	})
}

// clientInfos lists connected players sorted by name
func (s *Server) clientInfos() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.RLock()
		saves, polls := client.Saves, client.Polls
		client.mu.RUnlock()

		clients = append(clients, ClientInfo{
			Name:   client.Name,
			ID:     client.ID,
			UserID: client.UserID,
			Saves:  saves,
			Polls:  polls,
		})
	}

	sort.Slice(clients, func(i, j int) bool {
		if clients[i].Name != clients[j].Name {
			return clients[i].Name < clients[j].Name
		}
		return clients[i].ID < clients[j].ID
	})
	return clients
}

// userInfos summarizes each stored snapshot
func (s *Server) userInfos() []UserInfo {
	ctx := context.Background()

	users, err := s.store.Users(ctx)
	if err != nil {
		log.Printf("Error listing users: %v", err)
		return nil
	}

	infos := make([]UserInfo, 0, len(users))
	for _, userID := range users {
		snap, err := s.store.Load(ctx, userID)
		if err != nil {
			continue
		}
		infos = append(infos, UserInfo{
			UserID:       snap.UserID,
			PlaybackType: string(snap.PlaybackType),
			MediaID:      snap.MediaID,
			QueueLen:     len(snap.Queue),
			QueueIndex:   snap.QueueIndex,
			PositionSec:  snap.PositionSec,
			ShouldPlay:   snap.ShouldPlay,
			UpdatedAt:    time.UnixMilli(snap.UpdatedAtMs),
			Origin:       snap.OriginClientID,
		})
	}
	return infos
}
