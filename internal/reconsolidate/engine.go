// Package reconsolidate implements the access-weighted DCT round-trip that
// reshapes an embedding matrix so frequently-accessed chunks survive
// low-pass truncation better than cold ones.
package reconsolidate

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/openclaw/reconsolidate/internal/energy"
	recerrors "github.com/openclaw/reconsolidate/internal/errors"
	"github.com/openclaw/reconsolidate/internal/vectorstore"
)

// promotedThreshold/demotedThreshold gate which rows are interesting enough
// to report in a run's detail payload.
const (
	promotedThreshold = 0.001
	demotedThreshold  = -0.001
	maxPromotedRows   = 10
	maxDemotedRows    = 5
	previewMaxRunes   = 80
)

// Params are the tunables a single Engine run is invoked with.
type Params struct {
	KeepRatio         float64
	PromotionStrength float64
	DryRun            bool
}

// Mover is one row reported in a run's top-movers payload.
type Mover struct {
	ChunkKey string  `json:"chunk_key"`
	Preview  string  `json:"preview"`
	Energy   float64 `json:"energy"`
	Delta    float64 `json:"delta"`
}

// Result is everything one Engine run produces, ready for the metrics store
// to persist or for the CLI to render. Action is "none" (no-op, see Error
// and Hint) or "reconsolidated" (a real or dry-run pass completed).
type Result struct {
	Action            string
	Error             string // populated when Action == "none"
	Hint              string // populated alongside some "none" results
	NumChunks         int
	NumWithEnergy     int
	K                 int
	KeepRatio         float64
	PromotionStrength float64
	AvgBefore         float64
	AvgAfter          float64
	AvgDelta          float64
	MinDelta          float64
	MaxDelta          float64
	Anomalies         int
	Promoted          []Mover
	Demoted           []Mover
}

// Engine runs the weighted-DCT reconsolidation pass over a vector store,
// guided by an energy map derived from the access store.
type Engine struct {
	Store vectorstore.Store
}

// New builds an Engine over the given chunk/embedding store.
func New(store vectorstore.Store) *Engine {
	return &Engine{Store: store}
}

// Run executes one reconsolidation pass: load, weight, transform, compare,
// and (unless dry_run) write back and report a result ready for persistence.
func (e *Engine) Run(ctx context.Context, energyMap energy.Map, params Params) (Result, error) {
	chunks, matrix, err := e.Store.LoadAll()
	if err != nil {
		return Result{}, fmt.Errorf("reconsolidate: load chunks: %w", err)
	}

	n := len(chunks)
	if n == 0 {
		return Result{Action: "none", Error: "no chunks in vmem"}, nil
	}

	if len(energyMap) == 0 {
		return Result{
			Action:    "none",
			Error:     "no access events yet",
			Hint:      "Run some sessions first — access events are logged at compaction",
			NumChunks: n,
		}, nil
	}

	energyVec, matched := alignEnergy(chunks, energyMap)
	if matched == 0 {
		return Result{
			Action:    "none",
			Error:     "energy map has no keys matching current chunks",
			Hint:      "chunk keys may have changed since the access log was recorded; re-run the extractor",
			NumChunks: n,
		}, nil
	}

	k := keepCount(n, params.KeepRatio)
	weights := make([]float32, n)
	for i, e := range energyVec {
		weights[i] = float32(1 + params.PromotionStrength*e)
	}

	reconsolidated, err := transform(ctx, matrix, weights, k)
	if err != nil {
		return Result{}, fmt.Errorf("reconsolidate: weighted transform: %w", err)
	}

	unitWeights := make([]float32, n)
	for i := range unitWeights {
		unitWeights[i] = 1
	}
	baseline, err := transform(ctx, matrix, unitWeights, k)
	if err != nil {
		return Result{}, fmt.Errorf("reconsolidate: baseline transform: %w", err)
	}

	result := Result{
		Action:            "reconsolidated",
		NumChunks:         n,
		NumWithEnergy:     matched,
		K:                 k,
		KeepRatio:         params.KeepRatio,
		PromotionStrength: params.PromotionStrength,
		MinDelta:          math.Inf(1),
		MaxDelta:          math.Inf(-1),
	}

	var sumBefore, sumAfter, sumDelta float64
	type rowDelta struct {
		idx   int
		delta float32
	}
	deltas := make([]rowDelta, n)

	for i := 0; i < n; i++ {
		before := cosineSimilarity(matrix[i], baseline[i])
		after := cosineSimilarity(matrix[i], reconsolidated[i])

		if isDegenerate(before) || isDegenerate(after) {
			result.Anomalies++
			before, after = 0, 0
		}

		delta := after - before
		deltas[i] = rowDelta{idx: i, delta: delta}

		sumBefore += float64(before)
		sumAfter += float64(after)
		sumDelta += float64(delta)

		if float64(delta) < result.MinDelta {
			result.MinDelta = float64(delta)
		}
		if float64(delta) > result.MaxDelta {
			result.MaxDelta = float64(delta)
		}
	}

	result.AvgBefore = sumBefore / float64(n)
	result.AvgAfter = sumAfter / float64(n)
	result.AvgDelta = sumDelta / float64(n)

	sort.Slice(deltas, func(a, b int) bool { return deltas[a].delta > deltas[b].delta })

	for _, rd := range deltas {
		if float64(rd.delta) <= promotedThreshold || len(result.Promoted) >= maxPromotedRows {
			break
		}
		result.Promoted = append(result.Promoted, mover(chunks[rd.idx], energyVec[rd.idx], rd.delta))
	}
	for i := len(deltas) - 1; i >= 0; i-- {
		rd := deltas[i]
		if float64(rd.delta) >= demotedThreshold || len(result.Demoted) >= maxDemotedRows {
			break
		}
		result.Demoted = append(result.Demoted, mover(chunks[rd.idx], energyVec[rd.idx], rd.delta))
	}

	if params.DryRun {
		return result, nil
	}

	// Order stability: the chunk order read at the top of Run must still
	// hold at write-back time, or the reconstructed rows no longer line up
	// with their chunk IDs.
	current, _, err := e.Store.LoadAll()
	if err != nil {
		return Result{}, fmt.Errorf("reconsolidate: verify row count before write back: %w", err)
	}
	if len(current) != n {
		return Result{}, recerrors.New(recerrors.ErrCodeWriteBackFail,
			fmt.Sprintf("vector store row count changed during run: was %d, now %d", n, len(current)), nil)
	}

	ids := make([]int64, n)
	for i, c := range chunks {
		ids[i] = c.ID
	}
	rowsOut := make([][]float32, n)
	for i, v := range reconsolidated {
		rowsOut[i] = v
	}
	if err := e.Store.WriteBack(ids, rowsOut); err != nil {
		return Result{}, fmt.Errorf("reconsolidate: write back: %w", err)
	}

	return result, nil
}

// transform runs the full weight -> forward DCT -> low-pass truncate ->
// inverse DCT -> un-weight round-trip and returns the reconstructed matrix.
func transform(ctx context.Context, matrix [][]float32, weights []float32, k int) ([][]float32, error) {
	n := len(matrix)
	weighted := make([][]float32, n)
	for i, row := range matrix {
		w := weights[i]
		scaled := make([]float32, len(row))
		for j, v := range row {
			scaled[j] = v * w
		}
		weighted[i] = scaled
	}

	coeffs, err := forwardDCT(ctx, weighted)
	if err != nil {
		return nil, err
	}

	for i := k; i < n; i++ {
		for j := range coeffs[i] {
			coeffs[i][j] = 0
		}
	}

	reconstructed, err := inverseDCT(ctx, coeffs)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, n)
	for i, row := range reconstructed {
		w := weights[i]
		unweighted := make([]float32, len(row))
		for j, v := range row {
			unweighted[j] = v / w
		}
		out[i] = unweighted
	}

	return out, nil
}

// keepCount derives k = max(1, floor(n * keepRatio)).
func keepCount(n int, keepRatio float64) int {
	k := int(math.Floor(float64(n) * keepRatio))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// alignEnergy maps the energy map onto the chunk order returned by the
// store, defaulting unmatched chunks to 0. matched counts how many chunk
// keys the energy map actually covered.
func alignEnergy(chunks []vectorstore.Chunk, energyMap energy.Map) ([]float64, int) {
	out := make([]float64, len(chunks))
	matched := 0
	for i, c := range chunks {
		if e, ok := energyMap[c.ChunkKey]; ok {
			out[i] = e
			matched++
		}
	}
	return out, matched
}

func mover(c vectorstore.Chunk, e float64, delta float32) Mover {
	return Mover{
		ChunkKey: c.ChunkKey,
		Preview:  preview(c.Content),
		Energy:   e,
		Delta:    float64(delta),
	}
}

// preview truncates content to at most previewMaxRunes runes.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewMaxRunes {
		return content
	}
	return string(runes[:previewMaxRunes])
}
