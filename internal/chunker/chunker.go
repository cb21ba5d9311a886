// Package chunker turns ordered transcript segments into quality-scored
// semantic chunks, the atomic retrievable units of the knowledge base.
package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"vidcite/internal/text"
	"vidcite/pkg/models"
)

// Options bound chunk growth. Zero values fall back to defaults.
type Options struct {
	MinChunkDuration float64 // seconds
	MaxChunkDuration float64
	OverlapDuration  float64
	MinWordsPerChunk int
}

// DefaultOptions returns the production chunking thresholds.
func DefaultOptions() Options {
	return Options{
		MinChunkDuration: 60,
		MaxChunkDuration: 90,
		OverlapDuration:  8,
		MinWordsPerChunk: 50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinChunkDuration <= 0 {
		o.MinChunkDuration = d.MinChunkDuration
	}
	if o.MaxChunkDuration <= 0 {
		o.MaxChunkDuration = d.MaxChunkDuration
	}
	if o.OverlapDuration <= 0 {
		o.OverlapDuration = d.OverlapDuration
	}
	if o.MinWordsPerChunk <= 0 {
		o.MinWordsPerChunk = d.MinWordsPerChunk
	}
	return o
}

// maxWordsPerChunk closes a chunk before it grows past what a single
// retrieval unit can usefully carry.
const maxWordsPerChunk = 300

// silenceGap is the pause, in seconds, treated as a topic boundary.
const silenceGap = 2.0

// discourseMarkers open a new line of thought; a segment starting with one
// closes the chunk before it.
var discourseMarkers = []string{
	"now", "next", "so", "however", "but", "therefore",
	"in conclusion", "finally", "meanwhile", "on the other hand",
}

// Chunk greedily accumulates consecutive segments into chunks, closing at
// duration, word-count, or natural-breakpoint boundaries. Chunks below the
// minimum duration or word count are discarded; their segments still seed
// the next chunk through the overlap window.
func Chunk(segments []models.TranscriptSegment, videoID string, opt Options) []models.SemanticChunk {
	opt = opt.withDefaults()

	var chunks []models.SemanticChunk
	var pending []models.TranscriptSegment
	words := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if c, ok := build(pending, videoID, opt); ok {
			chunks = append(chunks, c)
		}
	}

	for _, seg := range segments {
		segWords := text.CountWords(seg.Text)
		if len(pending) == 0 {
			pending = append(pending, seg)
			words = segWords
			continue
		}

		closeHere := false
		start := pending[0].Start
		if seg.End-start > opt.MaxChunkDuration {
			closeHere = true
		} else if isNaturalBreak(pending[len(pending)-1], seg) {
			closeHere = true
		} else if words+segWords > maxWordsPerChunk {
			closeHere = true
		}

		if !closeHere {
			pending = append(pending, seg)
			words += segWords
			continue
		}

		flush()

		// Seed the next chunk with segments whose start falls inside the
		// overlap window before the triggering segment.
		var seed []models.TranscriptSegment
		for _, p := range pending {
			if p.Start >= seg.Start-opt.OverlapDuration {
				seed = append(seed, p)
			}
		}
		pending = append(seed, seg)
		words = 0
		for _, p := range pending {
			words += text.CountWords(p.Text)
		}
	}
	flush()
	return chunks
}

// isNaturalBreak reports whether the boundary between prev and next is a
// natural breakpoint: prev ends a sentence, next opens with a discourse
// marker, or the silence gap between them exceeds the threshold.
func isNaturalBreak(prev, next models.TranscriptSegment) bool {
	if text.EndsWithTerminal(prev.Text) {
		return true
	}
	lead := strings.ToLower(strings.TrimSpace(next.Text))
	for _, m := range discourseMarkers {
		if lead == m || strings.HasPrefix(lead, m+" ") || strings.HasPrefix(lead, m+",") {
			return true
		}
	}
	return next.Start-prev.End > silenceGap
}

func build(segs []models.TranscriptSegment, videoID string, opt Options) (models.SemanticChunk, bool) {
	start := segs[0].Start
	end := segs[len(segs)-1].End
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	content := strings.Join(parts, " ")
	words := text.CountWords(content)

	if end-start < opt.MinChunkDuration || words < opt.MinWordsPerChunk {
		return models.SemanticChunk{}, false
	}

	sentences := text.CountSentences(content)
	c := models.SemanticChunk{
		ID:            chunkID(videoID, start, end),
		VideoID:       videoID,
		StartTime:     start,
		EndTime:       end,
		Content:       content,
		SentenceCount: sentences,
		WordCount:     words,
		Confidence:    confidence(content, words, sentences),
		CreatedAt:     time.Now().UTC(),
	}
	return c, true
}

// confidence scores chunk completeness on [0,1]: sentence boundaries,
// reasonable length, terminal punctuation.
func confidence(content string, words, sentences int) float64 {
	score := 0.5
	if sentences >= 1 {
		score += 0.2
	}
	if sentences >= 2 {
		score += 0.1
	}
	if words >= 20 && words <= 100 {
		score += 0.2
	}
	if text.EndsWithTerminal(content) {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ValidateChunk is the post-hoc quality gate applied before a chunk is made
// retrievable, independent of the creation-time thresholds.
func ValidateChunk(c models.SemanticChunk) bool {
	if c.WordCount < 15 || c.WordCount > 200 {
		return false
	}
	if c.Confidence < 0.6 {
		return false
	}
	if c.EndTime-c.StartTime < 10 {
		return false
	}
	return true
}

// CreateStitchedWindows merges runs of adjacent chunks into larger context
// windows for the generation step. Windows are ephemeral; a window is only
// worth emitting when it spans more than one chunk or covers at least 30s.
func CreateStitchedWindows(chunks []models.SemanticChunk, maxWindowDuration float64) []models.StitchedWindow {
	if maxWindowDuration <= 0 {
		maxWindowDuration = 90
	}
	const maxChunkGap = 10.0

	var windows []models.StitchedWindow
	for i := range chunks {
		w := models.StitchedWindow{
			StartTime: chunks[i].StartTime,
			EndTime:   chunks[i].EndTime,
			Content:   chunks[i].Content,
			ChunkIDs:  []string{chunks[i].ID},
		}
		for j := i + 1; j < len(chunks); j++ {
			if chunks[j].StartTime-w.EndTime > maxChunkGap {
				break
			}
			if chunks[j].EndTime-w.StartTime > maxWindowDuration {
				break
			}
			w.EndTime = chunks[j].EndTime
			w.Content += " " + chunks[j].Content
			w.ChunkIDs = append(w.ChunkIDs, chunks[j].ID)
		}
		if len(w.ChunkIDs) > 1 || w.EndTime-w.StartTime >= 30 {
			windows = append(windows, w)
		}
	}
	return windows
}

func chunkID(videoID string, start, end float64) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s#%.2f:%.2f", videoID, start, end)))
	return hex.EncodeToString(h[:])
}
