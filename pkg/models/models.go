package models

import "time"

// TranscriptSegment is one timed line of an upstream transcript. Segments are
// ordered and non-overlapping; start and end are seconds into the video.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SemanticChunk is the atomic retrievable unit: a bounded span of transcript
// text with a creation-time quality score.
type SemanticChunk struct {
	ID            string    `json:"id"`
	CreatorID     string    `json:"creator_id"`
	VideoID       string    `json:"video_id"`
	VideoTitle    string    `json:"video_title"`
	VideoURL      string    `json:"video_url"`
	StartTime     float64   `json:"start_time"`
	EndTime       float64   `json:"end_time"`
	Content       string    `json:"content"`
	SentenceCount int       `json:"sentence_count"`
	WordCount     int       `json:"word_count"`
	Confidence    float64   `json:"confidence_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// StitchedWindow aggregates adjacent chunks to give the generator more
// context. Never persisted.
type StitchedWindow struct {
	StartTime float64  `json:"start_time"`
	EndTime   float64  `json:"end_time"`
	Content   string   `json:"content"`
	ChunkIDs  []string `json:"chunk_ids"`
}

// Candidate sources.
const (
	SourceVector  = "vector"
	SourceLexical = "lexical"
	SourceHybrid  = "hybrid"
)

// RetrievalCandidate is a per-query search hit. Ephemeral.
type RetrievalCandidate struct {
	ChunkID    string  `json:"chunk_id"`
	VideoID    string  `json:"video_id"`
	VideoTitle string  `json:"video_title"`
	VideoURL   string  `json:"video_url"`
	Content    string  `json:"content"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Score      float64 `json:"similarity_score"`
	Source     string  `json:"source"`
}

// ValidationResult is the validator's per-candidate verdict.
type ValidationResult struct {
	IsValid           bool     `json:"is_valid"`
	Confidence        float64  `json:"confidence"`
	Reasons           []string `json:"validation_reasons"`
	SemanticAlignment float64  `json:"semantic_alignment"`
	TemporalAccuracy  float64  `json:"temporal_accuracy"`
	ContentRelevance  float64  `json:"content_relevance"`
}

// ValidatedCitation pairs a candidate with its validation result.
type ValidatedCitation struct {
	Candidate RetrievalCandidate `json:"candidate"`
	Result    ValidationResult   `json:"result"`
}

// Citation is the user-visible reference. Numbers are contiguous from 1 and
// match the markers in the answer text exactly.
type Citation struct {
	Number       int    `json:"number"`
	VideoID      string `json:"video_id"`
	VideoTitle   string `json:"video_title"`
	TimestampURL string `json:"timestamp_url"`
	Content      string `json:"content"`
}

// Message is one turn of conversation history fed to the generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchStats reports per-stage counts for observability.
type SearchStats struct {
	VectorHits  int `json:"vector_hits"`
	LexicalHits int `json:"lexical_hits"`
	Merged      int `json:"merged"`
	Reranked    int `json:"reranked"`
	Validated   int `json:"validated"`
}

// AskResponse is the pipeline's answer to one user question.
type AskResponse struct {
	Answer     string      `json:"answer"`
	Citations  []Citation  `json:"citations"`
	Confidence float64     `json:"confidence"`
	Stats      SearchStats `json:"search_stats"`
}
