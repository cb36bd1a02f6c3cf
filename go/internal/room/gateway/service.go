package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service exposes rooms over WebSocket and HTTP.
type Service struct {
	hub               RoomHub
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the room gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the room gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

func NewService(config Config, hub RoomHub) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, hub)

	return &Service{
		hub:               hub,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(hub),
	}
}

// Shutdowner is implemented by hubs that can disconnect their observers.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Stop disconnects every client. Room state stays in the store.
func (s *Service) Stop(ctx context.Context) error {
	if sd, ok := s.hub.(Shutdowner); ok {
		if err := sd.Shutdown(ctx); err != nil {
			return err
		}
	}
	log.Info().Msg("room gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("room gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
