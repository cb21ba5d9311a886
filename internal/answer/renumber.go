package answer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"vidcite/pkg/models"
)

var (
	markerRe        = regexp.MustCompile(`\[(\d+)\]`)
	adjacentRe      = regexp.MustCompile(`\]\s*\[`)
	emptyBracketsRe = regexp.MustCompile(`\[\s*\]`)
	multiSpaceRe    = regexp.MustCompile(`[ \t]{2,}`)
	spacePunctRe    = regexp.MustCompile(` +([.,!?;:])`)
)

// startTolerance matches a marker's candidate to a surviving citation when
// content differs slightly but the clip is the same.
const startTolerance = 5.0

// Renumber rewrites the generator's [k] markers into a compact 1..M
// numbering. A marker survives only when the candidate at position k is
// still present after validation and deduplication (matched by content text,
// or by video plus near-equal start time); dead markers are deleted rather
// than left dangling. Distinct markers resolving to one surviving citation
// share one number, so a clip collapsed by deduplication can never surface
// twice. The returned citations match the cleaned text exactly: citation i
// is the i-th distinct surviving citation by first appearance.
func Renumber(rawAnswer string, candidates []models.RetrievalCandidate, validated []models.ValidatedCitation) (string, []models.Citation, []models.ValidatedCitation) {
	type mapping struct {
		newNum   int
		survivor models.ValidatedCitation
	}
	remap := map[int]*mapping{}
	bySurvivor := map[string]*mapping{}
	var order []*mapping
	next := 1

	for _, m := range markerRe.FindAllStringSubmatch(rawAnswer, -1) {
		k, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, seen := remap[k]; seen {
			continue
		}
		remap[k] = nil // default: delete
		if k < 1 || k > len(candidates) {
			continue
		}
		v, ok := findSurvivor(candidates[k-1], validated)
		if !ok {
			continue
		}
		if mp, numbered := bySurvivor[v.Candidate.ChunkID]; numbered {
			remap[k] = mp
			continue
		}
		mp := &mapping{newNum: next, survivor: v}
		remap[k] = mp
		bySurvivor[v.Candidate.ChunkID] = mp
		order = append(order, mp)
		next++
	}

	out := markerRe.ReplaceAllStringFunc(rawAnswer, func(marker string) string {
		k, _ := strconv.Atoi(markerRe.FindStringSubmatch(marker)[1])
		if mp := remap[k]; mp != nil {
			return "[" + strconv.Itoa(mp.newNum) + "]"
		}
		return ""
	})
	out = cleanup(out)

	citations := make([]models.Citation, 0, len(order))
	survivors := make([]models.ValidatedCitation, 0, len(order))
	for _, mp := range order {
		c := mp.survivor.Candidate
		citations = append(citations, models.Citation{
			Number:       mp.newNum,
			VideoID:      c.VideoID,
			VideoTitle:   c.VideoTitle,
			TimestampURL: TimestampURL(c),
			Content:      c.Content,
		})
		survivors = append(survivors, mp.survivor)
	}
	return out, citations, survivors
}

// findSurvivor locates the validated citation matching a prompt candidate.
func findSurvivor(c models.RetrievalCandidate, validated []models.ValidatedCitation) (models.ValidatedCitation, bool) {
	for _, v := range validated {
		if v.Candidate.Content == c.Content {
			return v, true
		}
		if v.Candidate.VideoID == c.VideoID &&
			math.Abs(v.Candidate.StartTime-c.StartTime) <= startTolerance {
			return v, true
		}
	}
	return models.ValidatedCitation{}, false
}

// cleanup collapses adjacent markers, removes bracket pairs left empty by
// deletions, and normalizes spacing.
func cleanup(s string) string {
	s = adjacentRe.ReplaceAllString(s, "], [")
	s = emptyBracketsRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = spacePunctRe.ReplaceAllString(s, "$1")
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimRight(ln, " \t"))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// StripMarkers removes all citation markers, for surfaces that speak the
// answer aloud.
func StripMarkers(s string) string {
	return cleanup(markerRe.ReplaceAllString(s, ""))
}
