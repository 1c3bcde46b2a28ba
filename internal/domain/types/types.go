// Package types contains common types used across the application
package types

// DomainScore is the derived per-domain summary returned by profile queries.
// It is recomputed from the ledger on every query and never persisted.
type DomainScore struct {
	Domain          string  `json:"domain"`
	Score           float64 `json:"score"`
	RecordCount     int     `json:"record_count"`
	LatestTimestamp uint64  `json:"latest_timestamp"`
	Trend           string  `json:"trend"` // rising, stable or declining
}

// Profile is the derived reputation summary for one identity. Like
// DomainScore it is fully recomputed from the ledger on every query.
type Profile struct {
	IdentityKey        string        `json:"identity_key"`
	TotalReputation    float64       `json:"total_reputation"`
	CredibilityLevel   string        `json:"credibility_level"`
	TrustIndex         float64       `json:"trust_index"`
	VerificationBadge  bool          `json:"verification_badge"`
	TotalRecords       int           `json:"total_records"`
	TopDomain          string        `json:"top_domain,omitempty"`
	ActiveSince        uint64        `json:"active_since,omitempty"`
	DomainScores       []DomainScore `json:"domain_scores"`
	SkippedFrameCount  int           `json:"skipped_frame_count,omitempty"`
	TruncatedTailBytes int           `json:"truncated_tail_bytes,omitempty"`
}

// Verification is the answer to "can this identity be trusted": the
// record count, the badge decision and the profile it was derived from.
type Verification struct {
	IdentityKey string  `json:"identity_key"`
	RecordCount int     `json:"record_count"`
	Verified    bool    `json:"verified"`
	Profile     Profile `json:"profile"`
}

// RecordView is the JSON-facing shape of one decoded skill record.
type RecordView struct {
	Mode         string `json:"mode"`
	Domain       string `json:"domain"`
	Score        uint64 `json:"score"`
	ArtifactHash string `json:"artifact_hash"`
	Timestamp    uint64 `json:"timestamp"`
}
