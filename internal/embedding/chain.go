package embedding

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/face-registry/internal/config"
)

// Preparer is a Provider that can verify its models are usable before serving requests.
type Preparer interface {
	Provider
	Prepare(ctx context.Context) error
}

// ClientsFromConfig builds one Client per configured strategy, in order.
func ClientsFromConfig(cfg *config.EmbeddingConfig) ([]Preparer, error) {
	strategies, err := cfg.Strategies()
	if err != nil {
		return nil, err
	}

	clients := make([]Preparer, 0, len(strategies))
	for _, s := range strategies {
		clients = append(clients, NewClient(cfg, s))
	}
	return clients, nil
}

// SelectProvider prepares candidates in order and returns the first that succeeds.
// The choice is made once; callers keep the returned provider for the process lifetime.
func SelectProvider(ctx context.Context, candidates []Preparer) (Provider, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: none configured", ErrAllStrategiesFailed)
	}

	errs := make([]error, 0, len(candidates))
	for _, p := range candidates {
		if err := p.Prepare(ctx); err != nil {
			log.Printf("Embedding strategy %s unavailable: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errors.Join(errs...))
}
