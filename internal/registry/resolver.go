// Package registry resolves agent keys to upstream endpoint configuration.
//
// An agent is a named bundle of function endpoints registered by an
// administrator. The resolver validates the bundle eagerly at request time
// so that request building never has to guess at defaults for mandatory
// fields.
package registry

import (
	"errors"
	"fmt"

	"github.com/tutorgate/tutorgate/internal/config"
)

var (
	ErrAgentNotFound         = errors.New("agent not found")
	ErrFunctionNotConfigured = errors.New("function not configured")
	ErrInvalidEndpointConfig = errors.New("invalid agent configuration (endpoint/api_key missing)")
)

// Source is the external config store the resolver reads from.
// Implemented by config.Manager. Reads must be safe for concurrent use.
type Source interface {
	AgentConfig(agentKey string) (config.AgentConfig, bool)
}

type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the endpoint configuration for one agent function.
// Idempotent and side-effect free; safe to call once per request.
func (r *Resolver) Resolve(agentKey, functionName string) (config.FunctionEndpoint, error) {
	agent, ok := r.source.AgentConfig(agentKey)
	if !ok {
		return config.FunctionEndpoint{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentKey)
	}

	endpoint, ok := agent[functionName]
	if !ok {
		return config.FunctionEndpoint{}, fmt.Errorf("%w: %s", ErrFunctionNotConfigured, functionName)
	}

	if endpoint.Endpoint == "" || endpoint.APIKey == "" {
		return config.FunctionEndpoint{}, ErrInvalidEndpointConfig
	}

	return endpoint, nil
}
