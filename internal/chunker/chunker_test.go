package chunker

import (
	"strings"
	"testing"
	"time"

	"vidcite/pkg/models"
)

// flatSegments builds n consecutive caption-style segments (no punctuation,
// so no natural breaks) of the given duration with five words each.
func flatSegments(n int, dur float64) []models.TranscriptSegment {
	segs := make([]models.TranscriptSegment, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * dur
		segs = append(segs, models.TranscriptSegment{
			Start: start,
			End:   start + dur,
			Text:  "keep the bar path tight",
		})
	}
	return segs
}

func TestChunkRespectsMaxDuration(t *testing.T) {
	segs := flatSegments(40, 5) // 200s of captions
	chunks := Chunk(segs, "vid-1", Options{})

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	opt := DefaultOptions()
	for i, c := range chunks {
		d := c.EndTime - c.StartTime
		if d > opt.MaxChunkDuration {
			t.Errorf("chunk %d spans %.1fs, exceeds max %.1fs", i, d, opt.MaxChunkDuration)
		}
		if d < opt.MinChunkDuration {
			t.Errorf("chunk %d spans %.1fs, below min %.1fs", i, d, opt.MinChunkDuration)
		}
		if c.WordCount < opt.MinWordsPerChunk {
			t.Errorf("chunk %d has %d words, below min %d", i, c.WordCount, opt.MinWordsPerChunk)
		}
		if c.VideoID != "vid-1" {
			t.Errorf("chunk %d video = %q, want vid-1", i, c.VideoID)
		}
		if c.ID == "" {
			t.Errorf("chunk %d has empty ID", i)
		}
	}
}

func TestChunkOverlap(t *testing.T) {
	segs := flatSegments(40, 5)
	chunks := Chunk(segs, "vid-1", Options{})

	if len(chunks) < 2 {
		t.Fatalf("want >= 2 chunks to observe overlap, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartTime >= chunks[i-1].EndTime {
			t.Errorf("chunk %d starts at %.1f, after previous end %.1f; expected overlap seeding",
				i, chunks[i].StartTime, chunks[i-1].EndTime)
		}
	}
}

func TestChunkSilenceGapBreaks(t *testing.T) {
	// Two caption blocks separated by a 3s pause. Each block must still meet
	// the minimum duration and word count on its own.
	var segs []models.TranscriptSegment
	for i := 0; i < 13; i++ {
		start := float64(i) * 5
		segs = append(segs, models.TranscriptSegment{Start: start, End: start + 5, Text: "squeeze at the very top"})
	}
	for i := 0; i < 14; i++ {
		start := 68 + float64(i)*5
		segs = append(segs, models.TranscriptSegment{Start: start, End: start + 5, Text: "lower slowly and under control"})
	}

	chunks := Chunk(segs, "vid-2", Options{})
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks across the silence gap, got %d", len(chunks))
	}
	if chunks[0].EndTime > 65.1 {
		t.Errorf("first chunk end %.1f crosses the pause", chunks[0].EndTime)
	}
}

func TestChunkDiscourseMarkerBreaks(t *testing.T) {
	var segs []models.TranscriptSegment
	for i := 0; i < 13; i++ {
		start := float64(i) * 5
		segs = append(segs, models.TranscriptSegment{Start: start, End: start + 5, Text: "drive through your heels evenly"})
	}
	// contiguous in time but opens a new line of thought
	for i := 0; i < 14; i++ {
		start := 65 + float64(i)*5
		txt := "keep your chest up high"
		if i == 0 {
			txt = "however form matters more here"
		}
		segs = append(segs, models.TranscriptSegment{Start: start, End: start + 5, Text: txt})
	}

	chunks := Chunk(segs, "vid-3", Options{})
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks split at the discourse marker, got %d", len(chunks))
	}
	if !strings.Contains(chunks[1].Content, "however") {
		t.Errorf("second chunk should carry the discourse marker, got %q", chunks[1].Content)
	}
	if strings.Contains(chunks[0].Content, "however") {
		t.Errorf("first chunk should close before the discourse marker, got %q", chunks[0].Content)
	}
}

func TestChunkDiscardsShort(t *testing.T) {
	// 30s of captions: under the 60s minimum, nothing should come out.
	chunks := Chunk(flatSegments(6, 5), "vid-4", Options{})
	if len(chunks) != 0 {
		t.Errorf("want no chunks from 30s of captions, got %d", len(chunks))
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if got := Chunk(nil, "vid-5", Options{}); len(got) != 0 {
		t.Errorf("want no chunks for nil segments, got %d", len(got))
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		words     int
		sentences int
		want      float64
	}{
		{
			name:      "fragment with no sentences",
			content:   "bar path",
			words:     2,
			sentences: 0,
			want:      0.5,
		},
		{
			name:      "one sentence, short, terminal",
			content:   "Keep the bar close.",
			words:     4,
			sentences: 1,
			want:      0.8, // base + sentence + terminal
		},
		{
			name:      "two sentences in range with terminal",
			content:   "First point here. Second point there.",
			words:     30,
			sentences: 2,
			want:      1.0, // capped
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidence(tt.content, tt.words, tt.sentences)
			if got != tt.want {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateChunk(t *testing.T) {
	base := models.SemanticChunk{
		WordCount:  60,
		Confidence: 0.8,
		StartTime:  0,
		EndTime:    60,
		CreatedAt:  time.Now(),
	}

	tests := []struct {
		name   string
		mutate func(*models.SemanticChunk)
		want   bool
	}{
		{name: "valid", mutate: func(c *models.SemanticChunk) {}, want: true},
		{name: "too few words", mutate: func(c *models.SemanticChunk) { c.WordCount = 14 }, want: false},
		{name: "too many words", mutate: func(c *models.SemanticChunk) { c.WordCount = 201 }, want: false},
		{name: "low confidence", mutate: func(c *models.SemanticChunk) { c.Confidence = 0.59 }, want: false},
		{name: "too brief", mutate: func(c *models.SemanticChunk) { c.EndTime = c.StartTime + 9 }, want: false},
		{name: "boundary word count", mutate: func(c *models.SemanticChunk) { c.WordCount = 15 }, want: true},
		{name: "boundary confidence", mutate: func(c *models.SemanticChunk) { c.Confidence = 0.6 }, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if got := ValidateChunk(c); got != tt.want {
				t.Errorf("ValidateChunk = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateStitchedWindows(t *testing.T) {
	chunks := []models.SemanticChunk{
		{ID: "a", StartTime: 0, EndTime: 40, Content: "part one"},
		{ID: "b", StartTime: 45, EndTime: 80, Content: "part two"},
		{ID: "c", StartTime: 200, EndTime: 215, Content: "far away"},
	}

	windows := CreateStitchedWindows(chunks, 90)
	if len(windows) != 2 {
		t.Fatalf("want 2 windows, got %d", len(windows))
	}

	// a and b are within the gap and span limits; c is isolated and too
	// short to stand alone.
	if len(windows[0].ChunkIDs) != 2 || windows[0].ChunkIDs[0] != "a" || windows[0].ChunkIDs[1] != "b" {
		t.Errorf("first window chunks = %v, want [a b]", windows[0].ChunkIDs)
	}
	if windows[0].Content != "part one part two" {
		t.Errorf("first window content = %q", windows[0].Content)
	}
	if len(windows[1].ChunkIDs) != 1 || windows[1].ChunkIDs[0] != "b" {
		t.Errorf("second window chunks = %v, want [b]", windows[1].ChunkIDs)
	}
}

func TestCreateStitchedWindowsSpanCap(t *testing.T) {
	chunks := []models.SemanticChunk{
		{ID: "a", StartTime: 0, EndTime: 50, Content: "x"},
		{ID: "b", StartTime: 55, EndTime: 100, Content: "y"}, // would push span past 90
	}
	windows := CreateStitchedWindows(chunks, 90)
	for _, w := range windows {
		if w.EndTime-w.StartTime > 90 {
			t.Errorf("window %v spans %.1fs, exceeds cap", w.ChunkIDs, w.EndTime-w.StartTime)
		}
	}
}
