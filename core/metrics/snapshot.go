package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/fleet/core/backplane"
)

// KeyPrefix namespaces per-node snapshots in the backplane.
const KeyPrefix = "metrics:"

// Snapshot is one node's published view. ResponseTime is a rolling average in
// milliseconds, Timestamp is unix milliseconds.
type Snapshot struct {
	NodeID            string  `json:"nodeId"`
	CPU               float64 `json:"cpu"`
	Memory            float64 `json:"memory"`
	RequestsPerMinute int64   `json:"requestsPerMinute"`
	ResponseTime      float64 `json:"responseTime"`
	Connections       int64   `json:"connections"`
	Timestamp         int64   `json:"timestamp"`
}

// Key returns the backplane key of a node snapshot.
func Key(nodeID string) string { return KeyPrefix + nodeID }

// ReadSnapshots loads every live snapshot. Keys that vanish between listing
// and reading, and undecodable values, are skipped. A listing failure is
// returned as is.
func ReadSnapshots(ctx context.Context, store backplane.Store) ([]Snapshot, error) {
	keys, err := store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		data, err := store.Get(ctx, k)
		if errors.Is(err, backplane.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", k, err)
		}
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		if s.NodeID == "" {
			s.NodeID = strings.TrimPrefix(k, KeyPrefix)
		}
		out = append(out, s)
	}
	return out, nil
}
