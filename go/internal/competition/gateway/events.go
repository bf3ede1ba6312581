package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/designjam/go/internal/competition/countdown"
	"github.com/mcdev12/designjam/go/internal/competition/invalidation"
	"github.com/mcdev12/designjam/go/internal/competition/view"
)

// FeedMessage is the envelope of every message pushed over the countdown websocket.
type FeedMessage struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// MessageType represents the type of feed message
type MessageType string

const (
	MessageTypeCountdown  MessageType = "countdown"
	MessageTypeInvalidate MessageType = "invalidate"
)

// CountdownPayload is a snapshot together with the view it selects.
type CountdownPayload struct {
	Snapshot countdown.Snapshot `json:"snapshot"`
	View     view.View          `json:"view"`
}

// InvalidatePayload tells clients to refetch everything cached under Namespace.
type InvalidatePayload struct {
	Namespace string `json:"namespace"`
	Phase     string `json:"phase,omitempty"`
}

func NewCountdownPayload(snap countdown.Snapshot) CountdownPayload {
	return CountdownPayload{Snapshot: snap, View: view.Select(snap)}
}

func encodeMessage(t MessageType, at time.Time, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	msg, err := json.Marshal(FeedMessage{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: at,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", t, err)
	}
	return msg, nil
}

func countdownMessage(snap countdown.Snapshot) ([]byte, error) {
	return encodeMessage(MessageTypeCountdown, snap.SampledAt, NewCountdownPayload(snap))
}

func invalidateMessage(evt invalidation.Event) ([]byte, error) {
	return encodeMessage(MessageTypeInvalidate, evt.EmittedAt, InvalidatePayload{
		Namespace: evt.Namespace,
		Phase:     evt.Phase,
	})
}
