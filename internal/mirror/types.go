// Package mirror consumes the access store and recent session transcripts
// to produce a compact text summary of hot/cold chunks, retrieval gaps,
// friction, co-access resonance, tool failures, and promotion candidates.
package mirror

// bootFiles are loaded every session and are never promotion candidates.
var bootFiles = map[string]bool{
	"MEMORY.md":    true,
	"SOUL.md":      true,
	"USER.md":      true,
	"IDENTITY.md":  true,
	"TOOLS.md":     true,
	"AGENTS.md":    true,
	"HEARTBEAT.md": true,
}

// HotEntry is one row of the hot-chunk ranking.
type HotEntry struct {
	ChunkKey string
	Accesses int
	Score    float64
}

// GapEntry is a query that returned nothing useful, with its miss count.
type GapEntry struct {
	Query  string
	Misses int
}

// FrictionEntry is a repeated-search pattern, aggregated across sessions.
type FrictionEntry struct {
	Pattern      string
	TotalRepeats int
}

// ResonanceEntry is a pair of chunks that co-occur across sessions.
type ResonanceEntry struct {
	A        string
	B        string
	Sessions int
}

// ToolFailureEntry tallies one kind of tool-call failure seen in transcripts.
type ToolFailureEntry struct {
	Kind  string
	Count int
}

// PromotionEntry is a chunk that has earned a spot in boot context.
type PromotionEntry struct {
	ChunkKey string
	Accesses int
	Sessions int
}

// Report is the full set of analyses over one window, ready for rendering.
type Report struct {
	WindowDays       int
	TotalEvents      int
	UniqueQueries    int
	SessionsSearched int
	Hot              []HotEntry
	Gaps             []GapEntry
	Friction         []FrictionEntry
	Resonance        []ResonanceEntry
	ToolFailures     []ToolFailureEntry
	Promotions       []PromotionEntry
}
