// Package invalidation tells downstream consumers to drop cached competition data.
package invalidation

import (
	"context"
	"strings"
	"time"
)

// DefaultSubjectPrefix is the NATS subject prefix invalidation events are published under.
const DefaultSubjectPrefix = "competition.invalidate"

// Invalidator drops cached data under a namespace.
type Invalidator interface {
	Invalidate(ctx context.Context, namespace string) error
}

// Event is the payload published for one invalidation.
type Event struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source,omitempty"`
	Namespace string    `json:"namespace"`
	FromPhase string    `json:"from_phase,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Subject maps a "voting/myVotes" namespace to "<prefix>.voting.myVotes".
func Subject(prefix, namespace string) string {
	return prefix + "." + strings.ReplaceAll(namespace, "/", ".")
}

// NamespaceFromSubject reverses Subject. ok is false when subject is outside prefix.
func NamespaceFromSubject(prefix, subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok || rest == "" {
		return "", false
	}
	return strings.ReplaceAll(rest, ".", "/"), true
}
