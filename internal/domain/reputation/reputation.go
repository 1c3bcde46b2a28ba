// Package reputation computes deterministic reputation profiles from
// decoded skill records.
//
// The engine is pure: identical (identity, records, now) inputs always
// produce an identical profile, bit for bit. It holds no storage state,
// performs no I/O and never errors on well-formed input - an empty
// ledger is a valid terminal state, not a failure.
package reputation

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verax/verax/internal/domain/model"
	"github.com/verax/verax/internal/domain/types"
)

// Scoring configuration constants.
const (
	// DefaultHalfLifeDays halves a record's influence every 180 days.
	DefaultHalfLifeDays = 180

	// missingTimestampAgeDays is the assumed age for records without a
	// timestamp: heavily discounted, never zero-weighted.
	missingTimestampAgeDays = 365

	// maxScorePerRecord caps each record's score before weighting,
	// guarding against out-of-range legacy data.
	maxScorePerRecord = 100

	secondsPerDay = 86400

	// Trend classification threshold in score points.
	trendThreshold = 5

	// Verification badge eligibility floors.
	badgeMinRecords    = 3
	badgeMinReputation = 50
	badgeMinDomains    = 1
)

// Trend labels for a domain's score trajectory.
const (
	TrendRising    = "rising"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Credibility levels, tiered from total reputation.
const (
	LevelExceptional = "exceptional" // >= 90
	LevelStrong      = "strong"      // >= 70
	LevelModerate    = "moderate"    // >= 50
	LevelDeveloping  = "developing"  // >= 30
	LevelMinimal     = "minimal"
)

// Trust index factor shares. Each factor is bounded to its share, so the
// sum never needs clamping.
const (
	shareReputation  = 0.40
	shareVolume      = 0.20
	shareDiversity   = 0.15
	shareConsistency = 0.15
	shareLongevity   = 0.10

	fullReputationAt  = 85.0
	fullVolumeAt      = 10.0
	fullDiversityAt   = 4.0
	stddevToleranceAt = 30.0
	fullLongevityDays = 180.0
)

// Engine computes reputation profiles.
type Engine struct {
	halfLifeDays float64
	clock        func() time.Time
}

// NewEngine creates an engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		halfLifeDays: DefaultHalfLifeDays,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute builds a full reputation profile from decoded skill records,
// evaluated at the engine's current clock time.
func (e *Engine) Compute(key model.IdentityKey, records []model.SkillRecord) types.Profile {
	return e.ComputeAt(key, records, uint64(e.clock().Unix()))
}

// ComputeAt is Compute with an explicit evaluation time, for reproducible
// results.
func (e *Engine) ComputeAt(key model.IdentityKey, records []model.SkillRecord, now uint64) types.Profile {
	if len(records) == 0 {
		return types.Profile{
			IdentityKey:      key.String(),
			CredibilityLevel: LevelMinimal,
			DomainScores:     []types.DomainScore{},
		}
	}

	// Group by normalized domain. "python:web-backend" and "python" share
	// the grouping key "python"; the subdomain is display-only here.
	grouped := make(map[string][]model.SkillRecord)
	order := make([]string, 0)
	for _, rec := range records {
		domain := NormalizeDomain(rec.Domain)
		if _, seen := grouped[domain]; !seen {
			order = append(order, domain)
		}
		grouped[domain] = append(grouped[domain], rec)
	}

	domainScores := make([]types.DomainScore, 0, len(order))
	weightedTotal := 0.0
	totalWeight := 0.0
	for _, domain := range order {
		ds := e.scoreDomain(domain, grouped[domain], now)
		domainScores = append(domainScores, ds)
		// A domain with more records has proportionally more influence on
		// the aggregate, independent of its internal decay weighting.
		weightedTotal += ds.Score * float64(ds.RecordCount)
		totalWeight += float64(ds.RecordCount)
	}

	totalReputation := 0.0
	if totalWeight > 0 {
		totalReputation = round2(weightedTotal / totalWeight)
	}

	// Ties on score break by domain name ascending so top_domain is
	// deterministic regardless of grouping-map iteration order.
	sort.SliceStable(domainScores, func(i, j int) bool {
		if domainScores[i].Score != domainScores[j].Score {
			return domainScores[i].Score > domainScores[j].Score
		}
		return domainScores[i].Domain < domainScores[j].Domain
	})

	badge := len(records) >= badgeMinRecords &&
		totalReputation >= badgeMinReputation &&
		len(domainScores) >= badgeMinDomains

	var activeSince uint64
	for _, rec := range records {
		if rec.Timestamp != 0 && (activeSince == 0 || rec.Timestamp < activeSince) {
			activeSince = rec.Timestamp
		}
	}

	return types.Profile{
		IdentityKey:       key.String(),
		TotalReputation:   totalReputation,
		CredibilityLevel:  LevelFromScore(totalReputation),
		TrustIndex:        round4(e.trustIndex(totalReputation, records, len(domainScores))),
		VerificationBadge: badge,
		TotalRecords:      len(records),
		TopDomain:         domainScores[0].Domain,
		ActiveSince:       activeSince,
		DomainScores:      domainScores,
	}
}

// scoreDomain computes one domain's decay-weighted score and trend.
func (e *Engine) scoreDomain(domain string, records []model.SkillRecord, now uint64) types.DomainScore {
	weightedSum := 0.0
	weightSum := 0.0
	var latest uint64

	for _, rec := range records {
		raw := math.Min(float64(rec.Score), maxScorePerRecord)
		if rec.Timestamp > latest {
			latest = rec.Timestamp
		}

		ageDays := float64(missingTimestampAgeDays)
		if rec.Timestamp != 0 {
			ageDays = 0
			if now > rec.Timestamp {
				ageDays = float64(now-rec.Timestamp) / secondsPerDay
			}
		}
		w := e.decayWeight(ageDays)

		weightedSum += raw * w
		weightSum += w
	}

	score := 0.0
	if weightSum > 0 {
		score = round2(weightedSum / weightSum)
	}

	return types.DomainScore{
		Domain:          domain,
		Score:           score,
		RecordCount:     len(records),
		LatestTimestamp: latest,
		Trend:           classifyTrend(records),
	}
}

// classifyTrend compares the unweighted mean of a domain's earlier half
// against its later half, sorted by timestamp. With an odd count the
// later half gets the extra record. Fewer than 2 records is stable.
func classifyTrend(records []model.SkillRecord) string {
	if len(records) < 2 {
		return TrendStable
	}

	sorted := make([]model.SkillRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	mid := len(sorted) / 2
	earlierMean := meanScore(sorted[:mid])
	laterMean := meanScore(sorted[mid:])

	switch {
	case laterMean > earlierMean+trendThreshold:
		return TrendRising
	case laterMean < earlierMean-trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func meanScore(records []model.SkillRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, rec := range records {
		sum += float64(rec.Score)
	}
	return sum / float64(len(records))
}

// trustIndex blends five bounded factors into a 0.0-1.0 composite.
func (e *Engine) trustIndex(reputation float64, records []model.SkillRecord, domainCount int) float64 {
	repFactor := math.Min(1, reputation/fullReputationAt) * shareReputation
	volumeFactor := math.Min(1, float64(len(records))/fullVolumeAt) * shareVolume
	diversityFactor := math.Min(1, float64(domainCount)/fullDiversityAt) * shareDiversity

	// Consistency: population stddev of raw scores. Below 2 samples the
	// factor defaults to half its share.
	consistency := 0.5
	if len(records) >= 2 {
		mean := 0.0
		for _, rec := range records {
			mean += float64(rec.Score)
		}
		mean /= float64(len(records))

		variance := 0.0
		for _, rec := range records {
			d := float64(rec.Score) - mean
			variance += d * d
		}
		variance /= float64(len(records))
		consistency = math.Max(0, 1-math.Sqrt(variance)/stddevToleranceAt)
	}
	consistencyFactor := consistency * shareConsistency

	// Longevity: span between oldest and newest valid timestamps.
	var minTS, maxTS uint64
	for _, rec := range records {
		if rec.Timestamp == 0 {
			continue
		}
		if minTS == 0 || rec.Timestamp < minTS {
			minTS = rec.Timestamp
		}
		if rec.Timestamp > maxTS {
			maxTS = rec.Timestamp
		}
	}
	longevity := 0.0
	if minTS != 0 {
		spanDays := float64(maxTS-minTS) / secondsPerDay
		longevity = math.Min(1, spanDays/fullLongevityDays)
	}
	longevityFactor := longevity * shareLongevity

	return repFactor + volumeFactor + diversityFactor + consistencyFactor + longevityFactor
}

// decayWeight is the exponential discount for a record's age. At exactly
// one half-life the weight is 0.5.
func (e *Engine) decayWeight(ageDays float64) float64 {
	return math.Exp(-math.Ln2 * ageDays / e.halfLifeDays)
}

// NormalizeDomain reduces "domain:subdomain" to its grouping key: the
// portion before the first ':', lowercased and trimmed.
func NormalizeDomain(domain string) string {
	head, _, _ := strings.Cut(domain, ":")
	return strings.TrimSpace(strings.ToLower(head))
}

// LevelFromScore maps a total reputation score onto a credibility tier.
func LevelFromScore(score float64) string {
	switch {
	case score >= 90:
		return LevelExceptional
	case score >= 70:
		return LevelStrong
	case score >= 50:
		return LevelModerate
	case score >= 30:
		return LevelDeveloping
	default:
		return LevelMinimal
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
