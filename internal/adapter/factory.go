package adapter

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edvin/deployhub/internal/config"
	"github.com/edvin/deployhub/internal/model"
)

// Factory resolves and caches one adapter per backend kind. Construction is
// idempotent and cheap; connection pools are opened lazily inside the
// adapters, so caching a constructed adapter is safe.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]Adapter
}

func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
		cache:  make(map[string]Adapter),
	}
}

// Get returns the adapter for the backend kind, constructing it on first use.
// Safe for concurrent callers.
func (f *Factory) Get(kind string) (Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ad, ok := f.cache[kind]; ok {
		return ad, nil
	}

	var (
		ad  Adapter
		err error
	)
	switch kind {
	case model.BackendKubernetes:
		ad, err = NewHelmAdapter(f.cfg, f.logger)
	case model.BackendAWX:
		ad, err = NewAWXAdapter(f.cfg, f.logger)
	case model.BackendCompose:
		ad, err = NewComposeAdapter(f.cfg, f.logger)
	case model.BackendTerraform:
		ad, err = NewTerraformAdapter(f.cfg, f.logger)
	case model.BackendManual:
		ad = NewManualAdapter(f.logger)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("construct %s adapter: %w", kind, err)
	}

	f.cache[kind] = ad
	return ad, nil
}
