package main

import (
	"fmt"
	"maps"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/xyz/config"
	"github.com/hupe1980/xyz/transport"
	"github.com/hupe1980/xyz/transport/anthropic"
	"github.com/hupe1980/xyz/transport/openai"
)

// newBackend maps the configured provider to a transport backend. NetMind
// speaks the OpenAI protocol under its own base URL.
func newBackend(cfg config.BackendConfig) (transport.Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderNetMind:
		return openai.New(func(o *openai.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.Model != "" {
				o.Model = sdkanthropic.Model(cfg.Model)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// client validates the configuration and builds the retrying transport client.
func (e *env) client() (*transport.Client, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := newBackend(e.cfg.Backend)
	if err != nil {
		return nil, err
	}

	retry := e.cfg.Retry

	return transport.New(backend, func(o *transport.Options) {
		if len(e.cfg.Backend.Params) > 0 {
			o.Params = maps.Clone(e.cfg.Backend.Params)
		}
		o.MaxAttempts = retry.MaxAttempts
		o.Interval = retry.Interval
		o.StreamIdleTimeout = retry.StreamIdleTimeout
		o.Logger = e.logger
	}), nil
}
