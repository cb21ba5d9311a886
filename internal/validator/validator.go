// Package validator decides which retrieval candidates are trustworthy
// enough to surface as citations, scoring each against the user query and
// the generated answer.
package validator

import (
	"fmt"
	"regexp"
	"sort"

	"vidcite/internal/text"
	"vidcite/pkg/models"
)

// Options fix the validation thresholds.
type Options struct {
	MinSemanticAlignment float64
	MinConfidence        float64
	MaxCitations         int
	SemanticThreshold    float64
}

// DefaultOptions returns the production validation thresholds.
func DefaultOptions() Options {
	return Options{
		MinSemanticAlignment: 0.7,
		MinConfidence:        0.6,
		MaxCitations:         5,
		SemanticThreshold:    0.65,
	}
}

// Weighted average over the five scores: semantic alignment, content
// relevance, temporal accuracy, retrieval confidence, content quality.
var scoreWeights = [5]float64{0.3, 0.25, 0.15, 0.2, 0.1}

const topKeywords = 20

// Conceptual pattern families. A family counts when both the query and the
// candidate content match it.
var patternFamilies = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(how (to|do|can)|steps?|guide|tutorial|instructions?)\b`),
	regexp.MustCompile(`(?i)\b(benefits?|advantages?|why (you )?(should|need)|helps?|improves?)\b`),
	regexp.MustCompile(`(?i)\b(problems?|issues?|mistakes?|errors?|trouble|fix(es|ing)?|avoid(ing)?)\b`),
	regexp.MustCompile(`(?i)\b(strateg(y|ies)|approach(es)?|methods?|techniques?|tips?)\b`),
	regexp.MustCompile(`(?i)\b(examples?|for instance|such as|e\.g\.)\b`),
}

// Validate scores each candidate on the five factors, keeps those meeting
// the validity rule, sorts by overall confidence, truncates to MaxCitations
// and deduplicates. Results are attached 1:1 to their candidates.
func Validate(userQuery, generatedAnswer string, candidates []models.RetrievalCandidate, opt Options) []models.ValidatedCitation {
	if opt.MaxCitations <= 0 {
		opt = DefaultOptions()
	}

	var valid []models.ValidatedCitation
	for _, c := range candidates {
		res := score(userQuery, generatedAnswer, c, opt)
		if res.IsValid {
			valid = append(valid, models.ValidatedCitation{Candidate: c, Result: res})
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Result.Confidence > valid[j].Result.Confidence
	})
	if len(valid) > opt.MaxCitations {
		valid = valid[:opt.MaxCitations]
	}
	return Deduplicate(valid)
}

func score(userQuery, answer string, c models.RetrievalCandidate, opt Options) models.ValidationResult {
	semantic := semanticAlignment(userQuery, answer, c.Content)
	relevance := contentRelevance(userQuery, c.Content)
	temporal := temporalAccuracy(c.StartTime, c.EndTime)
	retrieval := clamp01(c.Score)
	quality := contentQuality(c.Content)

	confidence := scoreWeights[0]*semantic +
		scoreWeights[1]*relevance +
		scoreWeights[2]*temporal +
		scoreWeights[3]*retrieval +
		scoreWeights[4]*quality

	var reasons []string
	passes := 0
	check := func(name string, got, min float64) {
		if got >= min {
			passes++
			reasons = append(reasons, fmt.Sprintf("%s %.2f >= %.2f", name, got, min))
		} else {
			reasons = append(reasons, fmt.Sprintf("%s %.2f below %.2f", name, got, min))
		}
	}
	check("semantic alignment", semantic, opt.MinSemanticAlignment)
	check("content relevance", relevance, opt.SemanticThreshold)
	check("temporal accuracy", temporal, 0.7)
	check("retrieval confidence", retrieval, opt.MinConfidence)
	check("content quality", quality, 0.5)

	isValid := semantic >= opt.MinSemanticAlignment &&
		relevance >= opt.SemanticThreshold &&
		retrieval >= opt.MinConfidence &&
		quality >= 0.5 &&
		passes >= 3

	return models.ValidationResult{
		IsValid:           isValid,
		Confidence:        confidence,
		Reasons:           reasons,
		SemanticAlignment: semantic,
		TemporalAccuracy:  temporal,
		ContentRelevance:  relevance,
	}
}

// semanticAlignment weighs answer/content keyword overlap at 0.7 and
// query/content overlap at 0.3, capped at 1.0.
func semanticAlignment(query, answer, content string) float64 {
	a := text.KeywordOverlap(answer, content, topKeywords)
	q := text.KeywordOverlap(query, content, topKeywords)
	return clamp01(0.7*a + 0.3*q)
}

// contentRelevance mixes query/content keyword overlap with the conceptual
// pattern-family match fraction.
func contentRelevance(query, content string) float64 {
	overlap := text.KeywordOverlap(query, content, topKeywords)
	matched := 0
	for _, re := range patternFamilies {
		if re.MatchString(query) && re.MatchString(content) {
			matched++
		}
	}
	pattern := float64(matched) / 3.0
	if pattern > 1.0 {
		pattern = 1.0
	}
	return clamp01(0.6*overlap + 0.4*pattern)
}

// temporalAccuracy trusts timestamps spanning a citeable moment: 3 to 60
// seconds with a non-negative start.
func temporalAccuracy(start, end float64) float64 {
	if start == 0 && end == 0 {
		return 0.7 // timestamps absent
	}
	if start < 0 {
		return 0.2
	}
	d := end - start
	switch {
	case d < 3:
		return 0.3
	case d > 60:
		return 0.5
	default:
		return 1.0
	}
}

// contentQuality combines word-count sanity, sentence completeness and a
// stop-word-ratio coherence check.
func contentQuality(content string) float64 {
	words := text.CountWords(content)
	wordScore := 1.0
	switch {
	case words < 10:
		wordScore = float64(words) / 10.0
	case words > 200:
		wordScore = 0.5
	}

	sentScore := float64(text.CountSentences(content)) / 3.0
	if sentScore > 1.0 {
		sentScore = 1.0
	}

	quality := (wordScore + sentScore) / 2.0

	ratio := text.StopWordRatio(content)
	if (ratio < 0.1 || ratio > 0.4) && quality >= 0.7 {
		quality = 0.65
	}
	return clamp01(quality)
}

// Deduplicate drops later citations that duplicate an earlier one: same
// video with time ranges overlapping more than half their combined span, or
// near-identical content keywords.
func Deduplicate(cs []models.ValidatedCitation) []models.ValidatedCitation {
	var out []models.ValidatedCitation
	for _, c := range cs {
		dup := false
		for _, kept := range out {
			if isDuplicate(kept.Candidate, c.Candidate) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

func isDuplicate(a, b models.RetrievalCandidate) bool {
	if a.VideoID == b.VideoID {
		overlapStart := a.StartTime
		if b.StartTime > overlapStart {
			overlapStart = b.StartTime
		}
		overlapEnd := a.EndTime
		if b.EndTime < overlapEnd {
			overlapEnd = b.EndTime
		}
		spanStart := a.StartTime
		if b.StartTime < spanStart {
			spanStart = b.StartTime
		}
		spanEnd := a.EndTime
		if b.EndTime > spanEnd {
			spanEnd = b.EndTime
		}
		if span := spanEnd - spanStart; span > 0 && overlapEnd > overlapStart {
			if (overlapEnd-overlapStart)/span > 0.5 {
				return true
			}
		}
	}
	return text.KeywordOverlap(a.Content, b.Content, topKeywords) > 0.8
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
