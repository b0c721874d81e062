// Package energy derives a normalized, time-decayed energy vector over
// chunk keys from the access store's raw accumulator rows.
package energy

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/openclaw/reconsolidate/internal/access"
)

// ChunkEnergy is one chunk's normalized energy score, in [0, 1].
type ChunkEnergy struct {
	ChunkKey string  `json:"chunk_key"`
	Energy   float64 `json:"energy"`
}

// Map is an energy map keyed by chunk key.
type Map map[string]float64

// Compute loads every tracked chunk's accumulator row and derives a
// recency-decayed, frequency- and strength-weighted energy score, normalized
// so the hottest chunk has energy 1.0. halfLifeHours controls how fast old
// accesses fade: an access from halfLifeHours ago counts half as much as one
// from now.
func Compute(ctx context.Context, store *access.Store, halfLifeHours float64, now time.Time) (Map, error) {
	rows, err := store.LoadAllChunkEnergy(ctx)
	if err != nil {
		return nil, err
	}

	decayRate := math.Ln2 / (halfLifeHours * 3600)
	nowUnix := float64(now.Unix())

	raw := make(Map, len(rows))
	var maxEnergy float64

	for _, row := range rows {
		if row.TotalAccesses <= 0 {
			continue
		}
		lastAccessed := row.LastAccessed
		if lastAccessed == 0 {
			lastAccessed = nowUnix
		}
		age := nowUnix - lastAccessed
		if age < 0 {
			age = 0
		}
		decay := math.Exp(-decayRate * age)

		avgScore := row.TotalScore / float64(row.TotalAccesses)
		e := avgScore * float64(row.TotalAccesses) * decay

		raw[row.ChunkKey] = e
		if e > maxEnergy {
			maxEnergy = e
		}
	}

	if maxEnergy <= 0 {
		return raw, nil
	}

	normalized := make(Map, len(raw))
	for key, e := range raw {
		normalized[key] = e / maxEnergy
	}
	return normalized, nil
}

// Sorted returns the map's entries sorted by descending energy, the shape
// the `energy` and mirror hot-chunk reports present.
func (m Map) Sorted() []ChunkEnergy {
	out := make([]ChunkEnergy, 0, len(m))
	for key, e := range m {
		out = append(out, ChunkEnergy{ChunkKey: key, Energy: e})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Energy == out[j].Energy {
			return out[i].ChunkKey < out[j].ChunkKey
		}
		return out[i].Energy > out[j].Energy
	})
	return out
}
