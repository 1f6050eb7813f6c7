package stt

import (
	"strings"

	"github.com/openai/openai-go/v3/azure"
)

// newAzure posts to
// {endpoint}/openai/deployments/{deployment}/audio/transcriptions?api-version=...
// with an api-key header.
func newAzure(cfg Config) (*client, error) {
	a := cfg.Azure
	key, err := required("Azure", "apiKey", a.APIKey, ErrMissingCredentials)
	if err != nil {
		return nil, err
	}
	endpoint, err := required("Azure", "endpoint", a.Endpoint, ErrEmptyField)
	if err != nil {
		return nil, err
	}
	deployment, err := required("Azure", "deployment", a.Deployment, ErrEmptyField)
	if err != nil {
		return nil, err
	}
	version, err := required("Azure", "apiVersion", a.APIVersion, ErrEmptyField)
	if err != nil {
		return nil, err
	}

	return newClient(cfg, deployment,
		azure.WithEndpoint(strings.TrimRight(endpoint, "/"), version),
		azure.WithAPIKey(key),
	), nil
}
