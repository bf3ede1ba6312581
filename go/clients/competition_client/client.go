// Package competition_client talks to the design competition REST API.
package competition_client

import (
	"time"

	"github.com/mcdev12/designjam/go/clients"
)

type CompetitionClient struct {
	*clients.BaseClient
}

// NewCompetitionClient creates a client for baseURL. token may be empty for the public
// status and scores endpoints.
func NewCompetitionClient(baseURL, token string, timeout time.Duration) *CompetitionClient {
	client := &CompetitionClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetToken(token)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return client
}
