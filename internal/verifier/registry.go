package verifier

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/llm"
)

// ErrOffline is returned by offline verifiers on a cache miss.
var ErrOffline = errors.New("offline: no cached response")

// BuildOptions tweaks how verifiers are constructed.
type BuildOptions struct {
	// Offline answers only from the response cache; misses fail with ErrOffline.
	Offline bool
}

// Set is the configured verifier adapters.
type Set struct {
	verifiers []*LLMVerifier
}

// Build constructs one adapter per configured verifier, in configuration order.
func Build(ctx context.Context, cfg *config.Config, c ResponseCache, logger *zap.Logger, opts BuildOptions) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	set := &Set{}
	for _, vc := range cfg.Verifiers {
		var client llm.Client
		if opts.Offline {
			client = offlineClient{model: vc.Model}
		} else {
			var err error
			client, err = llm.NewClient(ctx, llm.OptionsFromVerifier(vc))
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("failed to build verifier %s: %w", vc.Name, err)
			}
		}

		v, err := NewLLMVerifier(vc.Name, client, c, logger.Named("verifier"))
		if err != nil {
			client.Close()
			set.Close()
			return nil, err
		}
		set.verifiers = append(set.verifiers, v)
	}

	logger.Info("verifiers ready",
		zap.Int("count", len(set.verifiers)),
		zap.Bool("offline", opts.Offline))
	return set, nil
}

// Verifiers returns the adapters as the Verifier capability.
func (s *Set) Verifiers() []Verifier {
	out := make([]Verifier, len(s.verifiers))
	for i, v := range s.verifiers {
		out[i] = v
	}
	return out
}

// Close releases every backend client.
func (s *Set) Close() error {
	var errs []error
	for _, v := range s.verifiers {
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// offlineClient never reaches a backend.
type offlineClient struct {
	model string
}

func (c offlineClient) GenerateJSON(context.Context, string) (string, error) {
	return "", ErrOffline
}

func (c offlineClient) Model() string { return c.model }

func (c offlineClient) Close() error { return nil }
