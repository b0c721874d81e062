// Package metricsstore persists one row per Reconsolidation Engine run and
// the retrieval-tracking rows used to later audit which chunk rank actually
// served a query.
package metricsstore

// RunRecord is one ReconsolidationRun row.
type RunRecord struct {
	ID                int64   `json:"id"`
	Timestamp         float64 `json:"timestamp"`
	NumChunks         int     `json:"num_chunks"`
	NumWithEnergy     int     `json:"num_with_energy"`
	KCoefficients     int     `json:"k_coefficients"`
	KeepRatio         float64 `json:"keep_ratio"`
	PromotionStrength float64 `json:"promotion_strength"`
	AvgSimBefore      float64 `json:"avg_sim_before"`
	AvgSimAfter       float64 `json:"avg_sim_after"`
	AvgDelta          float64 `json:"avg_delta"`
	MaxPromotedDelta  float64 `json:"max_promoted_delta"`
	MaxDemotedDelta   float64 `json:"max_demoted_delta"`
	TotalAccessEvents int     `json:"total_access_events"`
	Anomalies         int     `json:"anomalies"`
	DetailsJSON       string  `json:"details_json"`
}

// RetrievalTrackingRecord is one retrieval_tracking row.
type RetrievalTrackingRecord struct {
	ID            int64   `json:"id"`
	Timestamp     float64 `json:"timestamp"`
	Query         string  `json:"query"`
	UsedChunkRank int     `json:"used_chunk_rank"`
	TotalResults  int     `json:"total_results"`
	SessionID     string  `json:"session_id"`
}
