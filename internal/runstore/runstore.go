// Package runstore builds the configured ports.RunStore.
package runstore

import (
	"fmt"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
	"github.com/tjfontaine/polyglot-dashboard/internal/pkg/config"
	"github.com/tjfontaine/polyglot-dashboard/internal/runstore/memory"
	"github.com/tjfontaine/polyglot-dashboard/internal/runstore/sqlite"
	"github.com/tjfontaine/polyglot-dashboard/internal/runstore/valkey"
)

// New creates the run store named by cfg.Type.
func New(cfg config.RunStoreConfig) (ports.RunStore, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(cfg.TTL), nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLite.Path, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("sqlite run store: %w", err)
		}
		return store, nil
	case "valkey":
		client, err := valkey.NewClient(cfg.Valkey.Addr, cfg.Valkey.Password)
		if err != nil {
			return nil, fmt.Errorf("valkey run store: %w", err)
		}
		return valkey.New(client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown run store type %q", cfg.Type)
	}
}
