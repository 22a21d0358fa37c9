// Package livestate mirrors per-bin display states into Redis so that
// sibling services (dashboards, pick-to-light controllers) can read the
// live grid without touching the database. The mirror is best-effort:
// a nil Mirror is a no-op and write failures are logged, never fatal.
package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"binwatch/inventory"
)

type Mirror struct {
	client *redis.Client
}

func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

func binKey(binID string) string {
	return fmt.Sprintf("binwatch:bin:%s:state", binID)
}

const allBinsKey = "binwatch:bins"

// SetBinState writes one bin's display state and registers the bin in
// the index set.
func (m *Mirror) SetBinState(ctx context.Context, state *inventory.BinDisplayState) error {
	if m == nil || m.client == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	pipe := m.client.Pipeline()
	pipe.Set(ctx, binKey(state.BinID), data, 0)
	pipe.SAdd(ctx, allBinsKey, state.BinID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetBinState reads one bin's mirrored state. Returns nil when the bin
// is not in the mirror.
func (m *Mirror) GetBinState(ctx context.Context, binID string) (*inventory.BinDisplayState, error) {
	if m == nil || m.client == nil {
		return nil, nil
	}
	data, err := m.client.Get(ctx, binKey(binID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state inventory.BinDisplayState
	return &state, json.Unmarshal(data, &state)
}

// GetAllBinStates reads every mirrored bin state.
func (m *Mirror) GetAllBinStates(ctx context.Context) ([]*inventory.BinDisplayState, error) {
	if m == nil || m.client == nil {
		return nil, nil
	}
	members, err := m.client.SMembers(ctx, allBinsKey).Result()
	if err != nil {
		return nil, err
	}
	states := make([]*inventory.BinDisplayState, 0, len(members))
	for _, binID := range members {
		state, err := m.GetBinState(ctx, binID)
		if err != nil || state == nil {
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

// SyncFromStore rebuilds the full mirror from the database. Called on
// startup so Redis never serves stale grids after a restart.
func (m *Mirror) SyncFromStore(ctx context.Context, inv *inventory.Service) error {
	if m == nil || m.client == nil {
		return nil
	}
	states, err := inv.CurrentInventory(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		if err := m.SetBinState(ctx, state); err != nil {
			log.Printf("livestate: sync failed for %s: %v", state.BinID, err)
		}
	}
	log.Printf("livestate: synced %d bins to redis", len(states))
	return nil
}

// RemoveBin drops one bin from the mirror.
func (m *Mirror) RemoveBin(ctx context.Context, binID string) error {
	if m == nil || m.client == nil {
		return nil
	}
	pipe := m.client.Pipeline()
	pipe.Del(ctx, binKey(binID))
	pipe.SRem(ctx, allBinsKey, binID)
	_, err := pipe.Exec(ctx)
	return err
}
