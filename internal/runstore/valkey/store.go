// Package valkey is a run store backed by Valkey, so that replicas behind a load
// balancer share runs. Expiry is left to the server via key TTLs.
package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
)

const keyPrefix = "dashboard:run:"

// Store keeps each run's context as JSON under dashboard:run:{run_id}.
type Store struct {
	client valkey.Client
	ttl    time.Duration
}

var _ ports.RunStore = (*Store)(nil)

// NewClient connects to addr and verifies connectivity.
func NewClient(addr, password string) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{addr},
	}
	if password != "" {
		opts.Password = password
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	resp := client.Do(context.Background(), client.B().Ping().Build())
	if err := resp.Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return client, nil
}

// New creates a store over client. Keys expire ttl after their last write.
func New(client valkey.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) ttlSeconds() int64 {
	secs := int64(s.ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (s *Store) Create(ctx context.Context, pc *domain.PipelineContext) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", pc.RunID(), err)
	}

	key := keyPrefix + pc.RunID()
	resp := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Nx().ExSeconds(s.ttlSeconds()).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return fmt.Errorf("run %s already exists", pc.RunID())
		}
		return fmt.Errorf("create run %s: %w", pc.RunID(), err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (*domain.PipelineContext, error) {
	key := keyPrefix + runID
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var pc domain.PipelineContext
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &pc, nil
}

// Save overwrites the run only if it still exists (SET XX), refreshing its TTL.
func (s *Store) Save(ctx context.Context, pc *domain.PipelineContext) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", pc.RunID(), err)
	}

	key := keyPrefix + pc.RunID()
	resp := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Xx().ExSeconds(s.ttlSeconds()).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return domain.ErrRunNotFound
		}
		return fmt.Errorf("save run %s: %w", pc.RunID(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, runID string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Del().Key(keyPrefix+runID).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("delete run %s: %w", runID, err)
	}
	return n > 0, nil
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}
