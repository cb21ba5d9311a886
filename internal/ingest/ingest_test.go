package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/karrick/godirwalk"

	"vidcite/internal/store"
	"vidcite/pkg/models"
)

type mockClient struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFunc(ctx, text)
}

func (m *mockClient) Generate(context.Context, string, []models.Message, string) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockClient) Dim() int { return 4 }

type recordingStore struct {
	mu      sync.Mutex
	deletes []string
	upserts []models.SemanticChunk
}

func (r *recordingStore) Migrate(context.Context, int) error { return nil }

func (r *recordingStore) UpsertChunk(_ context.Context, c models.SemanticChunk, _ []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, c)
	return nil
}

func (r *recordingStore) DeleteVideoChunks(_ context.Context, creatorID, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, creatorID+"/"+videoID)
	return nil
}

func (r *recordingStore) VectorQuery(context.Context, string, []float32, float64, int) ([]models.RetrievalCandidate, error) {
	return nil, nil
}

func (r *recordingStore) LexicalQuery(context.Context, string, []string, int) ([]models.RetrievalCandidate, error) {
	return nil, nil
}

func (r *recordingStore) ListVideos(context.Context, string) ([]store.VideoInfo, error) {
	return nil, nil
}

type mockWalker struct {
	paths []string
}

func (m *mockWalker) Walk(_ string, options *godirwalk.Options) error {
	for _, p := range m.paths {
		if err := options.Callback(p, nil); err != nil {
			return err
		}
	}
	return nil
}

type mockReader struct {
	files map[string][]byte
	reads []string
}

func (m *mockReader) ReadFile(filename string) ([]byte, error) {
	m.reads = append(m.reads, filename)
	b, ok := m.files[filename]
	if !ok {
		return nil, errors.New("no such file")
	}
	return b, nil
}

// captionSegments yields enough caption text to clear the chunking minimums:
// a single chunk spanning 0-90s with 90 words.
func captionSegments() []models.TranscriptSegment {
	var segs []models.TranscriptSegment
	for i := 0; i < 19; i++ {
		start := float64(i) * 5
		segs = append(segs, models.TranscriptSegment{Start: start, End: start + 5, Text: "keep the bar path tight"})
	}
	return segs
}

func newTestIngestor(st *recordingStore, client *mockClient) *Ingestor {
	ix := New(st, client, "creator-1", "/transcripts")
	ix.Concurrency = 2
	return ix
}

func TestProcessVideoIndexesChunks(t *testing.T) {
	st := &recordingStore{}
	client := &mockClient{embedFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}}

	err := newTestIngestor(st, client).ProcessVideo(context.Background(), "vid-1", "Bar Path", "https://example.com/v", captionSegments())
	if err != nil {
		t.Fatalf("ProcessVideo returned error: %v", err)
	}

	if len(st.deletes) != 1 || st.deletes[0] != "creator-1/vid-1" {
		t.Errorf("want exactly one supersede delete, got %v", st.deletes)
	}
	if len(st.upserts) != 1 {
		t.Fatalf("want 1 upserted chunk, got %d", len(st.upserts))
	}
	c := st.upserts[0]
	if c.CreatorID != "creator-1" || c.VideoID != "vid-1" || c.VideoTitle != "Bar Path" || c.VideoURL != "https://example.com/v" {
		t.Errorf("chunk metadata not stamped: %+v", c)
	}
	if c.EndTime-c.StartTime < 60 {
		t.Errorf("chunk spans %.1fs, below the chunking minimum", c.EndTime-c.StartTime)
	}
}

func TestProcessVideoSkipsFailedEmbeddings(t *testing.T) {
	st := &recordingStore{}
	client := &mockClient{embedFunc: func(context.Context, string) ([]float32, error) {
		return nil, errors.New("provider down")
	}}

	err := newTestIngestor(st, client).ProcessVideo(context.Background(), "vid-1", "t", "", captionSegments())
	if err != nil {
		t.Fatalf("embedding failure must not fail the batch: %v", err)
	}
	if len(st.upserts) != 0 {
		t.Errorf("chunk with failed embedding must not be upserted, got %d", len(st.upserts))
	}
	// supersede still ran: stale chunks must not outlive a re-ingest attempt
	if len(st.deletes) != 1 {
		t.Errorf("want supersede delete even on embed failure, got %d", len(st.deletes))
	}
}

func TestProcessVideoDropsLowQualityChunks(t *testing.T) {
	st := &recordingStore{}
	client := &mockClient{embedFunc: func(context.Context, string) ([]float32, error) {
		t.Error("rejected chunks must not be embedded")
		return nil, nil
	}}

	// 30s of captions: below the 60s minimum, so nothing survives chunking.
	short := captionSegments()[:6]
	err := newTestIngestor(st, client).ProcessVideo(context.Background(), "vid-1", "t", "", short)
	if err != nil {
		t.Fatalf("ProcessVideo returned error: %v", err)
	}
	if len(st.upserts) != 0 {
		t.Errorf("want no upserts, got %d", len(st.upserts))
	}
}

func TestRunSkipsUnknownExtensions(t *testing.T) {
	st := &recordingStore{}
	client := &mockClient{embedFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	}}
	reader := &mockReader{files: map[string][]byte{
		"/transcripts/video1.json": []byte(`{"video_id":"vid-1","title":"T","segments":[]}`),
	}}

	ix := newTestIngestor(st, client)
	ix.Walker = &mockWalker{paths: []string{
		"/transcripts/video1.json",
		"/transcripts/README.md",
		"/transcripts/thumb.png",
	}}
	ix.FileReader = reader

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(reader.reads) != 1 || reader.reads[0] != "/transcripts/video1.json" {
		t.Errorf("only transcript files should be read, got %v", reader.reads)
	}
}

func TestRunSurvivesBadFiles(t *testing.T) {
	st := &recordingStore{}
	client := &mockClient{embedFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	}}
	reader := &mockReader{files: map[string][]byte{
		"/transcripts/broken.json": []byte(`{not json`),
	}}

	ix := newTestIngestor(st, client)
	ix.Walker = &mockWalker{paths: []string{"/transcripts/broken.json", "/transcripts/missing.srt"}}
	ix.FileReader = reader

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("per-file failures must not abort the walk: %v", err)
	}
}

func TestParseTranscriptJSON(t *testing.T) {
	b := []byte(`{"title":"Mobility Day","url":"https://example.com/v","segments":[{"start":0,"end":2,"text":"hello"}]}`)
	tf, err := parseTranscript("/transcripts/mob-day.json", b)
	if err != nil {
		t.Fatalf("parseTranscript returned error: %v", err)
	}
	if tf.VideoID != "mob-day" {
		t.Errorf("missing video_id should fall back to filename, got %q", tf.VideoID)
	}
	if tf.Title != "Mobility Day" || len(tf.Segments) != 1 {
		t.Errorf("parsed transcript = %+v", tf)
	}
}

func TestParseTranscriptSRT(t *testing.T) {
	b := []byte("1\n00:00:00,000 --> 00:00:02,000\nhello there\n")
	tf, err := parseTranscript("/transcripts/intro.srt", b)
	if err != nil {
		t.Fatalf("parseTranscript returned error: %v", err)
	}
	if tf.VideoID != "intro" || tf.Title != "intro" {
		t.Errorf("srt transcript should take identity from filename, got %+v", tf)
	}
	if len(tf.Segments) != 1 || tf.Segments[0].Text != "hello there" {
		t.Errorf("segments = %+v", tf.Segments)
	}
}
