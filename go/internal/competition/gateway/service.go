// Package gateway serves the live countdown over WebSocket and the phase-gated
// competition data over REST.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/competition/invalidation"
)

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	AllowedOrigins   []string
	// NATSConnected reports the invalidation bus state on /health. Nil when NATS is disabled.
	NATSConnected func() bool
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		AllowedOrigins:   []string{"*"},
	}
}

// Service is the countdown gateway. It is also an invalidation.Invalidator: every
// namespace it is told to drop is relayed to the connected clients.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	config            Config
	clock             clockwork.Clock
}

var _ invalidation.Invalidator = (*Service)(nil)

func NewService(engine Countdown, voting Voting, leaderboard Leaderboard, config Config) *Service {
	connectionManager := NewConnectionManager(engine, config.ConnectionConfig)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(engine, voting, leaderboard, connectionManager, config.NATSConnected),
		config:            config,
		clock:             clockwork.NewRealClock(),
	}
}

// Start runs the connection manager until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting countdown gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("countdown gateway stopped")
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterRoutes(mux)
	log.Info().Strs("allowed_origins", s.config.AllowedOrigins).Msg("countdown gateway routes registered")
}

// Handler returns every gateway route behind the CORS policy.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return WithCORS(mux, s.config.AllowedOrigins)
}

func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

// Invalidate tells connected clients to drop everything cached under namespace.
func (s *Service) Invalidate(ctx context.Context, namespace string) error {
	evt := invalidation.Event{
		Namespace: namespace,
		EmittedAt: s.clock.Now().UTC(),
	}
	if tr, ok := competition.TransitionFrom(ctx); ok {
		evt.FromPhase = tr.From.String()
		evt.Phase = tr.To.String()
	}
	return s.RelayInvalidation(evt)
}

// RelayInvalidation forwards an invalidation received from another process.
func (s *Service) RelayInvalidation(evt invalidation.Event) error {
	evt.Namespace = strings.Trim(evt.Namespace, "/")
	message, err := invalidateMessage(evt)
	if err != nil {
		return err
	}
	s.connectionManager.Broadcast(message)

	log.Debug().
		Str("namespace", evt.Namespace).
		Str("phase", evt.Phase).
		Msg("relayed invalidation to clients")
	return nil
}
