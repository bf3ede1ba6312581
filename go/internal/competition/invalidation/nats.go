package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/internal/competition"
)

const (
	HeaderEventID   = "Event-ID"
	HeaderNamespace = "Namespace"
)

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: DefaultSubjectPrefix,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with reconnect logging.
func Connect(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("competition-countdown"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher broadcasts invalidations so other processes can drop their caches.
type NATSPublisher struct {
	conn   MsgPublisher
	prefix string
	clock  clockwork.Clock
	source string
}

func NewNATSPublisher(conn MsgPublisher, prefix string, clock clockwork.Clock) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, clock: clock, source: uuid.New().String()}
}

// Source identifies this publisher in the events it sends, so a listener in the same
// process can ignore its own invalidations.
func (p *NATSPublisher) Source() string {
	return p.source
}

func (p *NATSPublisher) Invalidate(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := Event{
		EventID:   uuid.New().String(),
		Source:    p.source,
		Namespace: namespace,
		EmittedAt: p.clock.Now().UTC(),
	}
	if tr, ok := competition.TransitionFrom(ctx); ok {
		event.FromPhase = tr.From.String()
		event.Phase = tr.To.String()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal invalidation event: %w", err)
	}

	subject := Subject(p.prefix, namespace)
	err = p.conn.PublishMsg(&nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			HeaderEventID:   []string{event.EventID},
			HeaderNamespace: []string{namespace},
		},
	})
	if err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}

	log.Info().
		Str("subject", subject).
		Str("event_id", event.EventID).
		Str("phase", event.Phase).
		Msg("published invalidation")

	return nil
}

// MsgSubscriber is the part of *nats.Conn the listener needs.
type MsgSubscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Listen subscribes to every invalidation under prefix and hands decoded events to
// handle. Undecodable messages are logged and skipped.
func Listen(conn MsgSubscriber, prefix string, handle func(Event)) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	sub, err := conn.Subscribe(prefix+".>", func(msg *nats.Msg) {
		event, err := decodeEvent(prefix, msg)
		if err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to decode invalidation")
			return
		}
		handle(event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to invalidations: %w", err)
	}
	return sub, nil
}

func decodeEvent(prefix string, msg *nats.Msg) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal invalidation event: %w", err)
	}
	if event.Namespace == "" {
		ns, ok := NamespaceFromSubject(prefix, msg.Subject)
		if !ok {
			return Event{}, fmt.Errorf("subject %q outside %q", msg.Subject, prefix)
		}
		event.Namespace = ns
	}
	return event, nil
}
