package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Credentials holds the API keys for both external services, read from the
// environment once at startup and passed by reference to the service clients.
type Credentials struct {
	OpenRouterKey string `envconfig:"OPENROUTER_API_KEY"`
	// Replicate is accepted under either name; the token form wins.
	ReplicateToken string `envconfig:"REPLICATE_API_TOKEN"`
	ReplicateKey   string `envconfig:"REPLICATE_API_KEY"`
}

func LoadCredentials() (*Credentials, error) {
	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return nil, fmt.Errorf("read credentials from environment: %w", err)
	}
	return &creds, nil
}

// Replicate returns the effective video-service credential, preferring
// REPLICATE_API_TOKEN over REPLICATE_API_KEY when both are set.
func (c *Credentials) Replicate() string {
	if c.ReplicateToken != "" {
		return c.ReplicateToken
	}
	return c.ReplicateKey
}

// MissingCredentialError is a fatal configuration failure raised before any
// network call is attempted.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential: %s is not set", e.Name)
}
