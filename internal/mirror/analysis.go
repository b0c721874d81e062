package mirror

import (
	"sort"
	"strings"

	"github.com/openclaw/reconsolidate/internal/access"
)

const (
	hotTopN       = 10
	gapsTopN      = 15
	frictionTopN  = 10
	resonanceTopN = 20

	minFrictionRepeats   = 2
	minResonanceSessions = 2
	minPromotionAccesses = 5
	minPromotionSessions = 3
)

// analyzeHot ranks chunk energy rows by total accesses, descending.
func analyzeHot(chunks []access.ChunkEnergy) []HotEntry {
	sorted := make([]access.ChunkEnergy, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TotalAccesses == sorted[j].TotalAccesses {
			return sorted[i].ChunkKey < sorted[j].ChunkKey
		}
		return sorted[i].TotalAccesses > sorted[j].TotalAccesses
	})

	n := hotTopN
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]HotEntry, 0, n)
	for _, c := range sorted[:n] {
		out = append(out, HotEntry{ChunkKey: c.ChunkKey, Accesses: c.TotalAccesses, Score: c.TotalScore})
	}
	return out
}

// analyzeGaps finds queries that returned nothing useful (zero results or a
// top score of zero), ranked by how many times each missed; a single miss
// is included.
func analyzeGaps(events []access.AccessEvent) []GapEntry {
	counts := map[string]int{}
	order := []string{}
	for _, e := range events {
		if e.NResults == 0 || e.TopScore == 0 {
			if _, seen := counts[e.Query]; !seen {
				order = append(order, e.Query)
			}
			counts[e.Query]++
		}
	}

	entries := make([]GapEntry, 0, len(counts))
	for _, q := range order {
		entries = append(entries, GapEntry{Query: q, Misses: counts[q]})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Misses > entries[j].Misses })

	if len(entries) > gapsTopN {
		entries = entries[:gapsTopN]
	}
	return entries
}

// analyzeFriction groups queries within a session by their lowercase first
// three tokens; a group of 2+ is a friction pattern. Pattern totals are
// aggregated across sessions.
func analyzeFriction(events []access.AccessEvent) []FrictionEntry {
	sessionQueries := map[string][]string{}
	for _, e := range events {
		sid := e.SessionID
		if sid == "" {
			sid = "unknown"
		}
		sessionQueries[sid] = append(sessionQueries[sid], e.Query)
	}

	patternTotals := map[string]int{}
	for _, queries := range sessionQueries {
		seen := map[string]int{}
		for _, q := range queries {
			seen[frictionKey(q)]++
		}
		for pattern, count := range seen {
			if count >= minFrictionRepeats {
				patternTotals[pattern] += count
			}
		}
	}

	entries := make([]FrictionEntry, 0, len(patternTotals))
	for pattern, total := range patternTotals {
		entries = append(entries, FrictionEntry{Pattern: pattern, TotalRepeats: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalRepeats == entries[j].TotalRepeats {
			return entries[i].Pattern < entries[j].Pattern
		}
		return entries[i].TotalRepeats > entries[j].TotalRepeats
	})

	if len(entries) > frictionTopN {
		entries = entries[:frictionTopN]
	}
	return entries
}

func frictionKey(query string) string {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}
	return strings.Join(tokens, " ")
}

// analyzeResonance counts unordered-pair co-occurrence of result chunk keys
// within a session, across all sessions, keeping pairs seen 2+ times.
func analyzeResonance(events []access.AccessEvent) []ResonanceEntry {
	sessionChunks := map[string]map[string]bool{}
	for _, e := range events {
		sid := e.SessionID
		if sid == "" {
			sid = "unknown"
		}
		set, ok := sessionChunks[sid]
		if !ok {
			set = map[string]bool{}
			sessionChunks[sid] = set
		}
		for _, r := range e.Results {
			set[r.ChunkKey()] = true
		}
	}

	type pair struct{ a, b string }
	cooccur := map[pair]int{}
	for _, set := range sessionChunks {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				cooccur[pair{keys[i], keys[j]}]++
			}
		}
	}

	type ranked struct {
		pair  pair
		count int
	}
	var ranked_ []ranked
	for p, c := range cooccur {
		if c >= minResonanceSessions {
			ranked_ = append(ranked_, ranked{p, c})
		}
	}
	sort.Slice(ranked_, func(i, j int) bool {
		if ranked_[i].count == ranked_[j].count {
			return ranked_[i].pair.a < ranked_[j].pair.a
		}
		return ranked_[i].count > ranked_[j].count
	})

	if len(ranked_) > resonanceTopN {
		ranked_ = ranked_[:resonanceTopN]
	}

	out := make([]ResonanceEntry, 0, len(ranked_))
	for _, r := range ranked_ {
		out = append(out, ResonanceEntry{A: r.pair.a, B: r.pair.b, Sessions: r.count})
	}
	return out
}

// analyzePromotions finds chunks accessed 5+ times across 3+ distinct
// sessions whose file isn't already in boot context.
func analyzePromotions(events []access.AccessEvent, chunkEnergies map[string]access.ChunkEnergy) []PromotionEntry {
	sessionsByChunk := map[string]map[string]bool{}
	for _, e := range events {
		sid := e.SessionID
		if sid == "" {
			sid = "unknown"
		}
		for _, r := range e.Results {
			key := r.ChunkKey()
			set, ok := sessionsByChunk[key]
			if !ok {
				set = map[string]bool{}
				sessionsByChunk[key] = set
			}
			set[sid] = true
		}
	}

	var out []PromotionEntry
	for chunkKey, sessions := range sessionsByChunk {
		filePart := chunkKey
		if idx := strings.Index(chunkKey, ":"); idx >= 0 {
			filePart = chunkKey[:idx]
		}
		if bootFiles[filePart] {
			continue
		}
		accesses := chunkEnergies[chunkKey].TotalAccesses
		if accesses >= minPromotionAccesses && len(sessions) >= minPromotionSessions {
			out = append(out, PromotionEntry{ChunkKey: chunkKey, Accesses: accesses, Sessions: len(sessions)})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Accesses == out[j].Accesses {
			return out[i].ChunkKey < out[j].ChunkKey
		}
		return out[i].Accesses > out[j].Accesses
	})
	return out
}
