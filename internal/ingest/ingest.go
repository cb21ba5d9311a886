// Package ingest walks a creator's transcript directory, chunks each video
// and writes embedded chunks to the store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"vidcite/internal/ai"
	"vidcite/internal/chunker"
	"vidcite/internal/store"
	"vidcite/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// transcriptFile is the JSON transcript format: metadata plus ordered
// segments. SRT files carry no metadata; the filename is the video ID.
type transcriptFile struct {
	VideoID  string                     `json:"video_id"`
	Title    string                     `json:"title"`
	URL      string                     `json:"url"`
	Segments []models.TranscriptSegment `json:"segments"`
}

// Ingestor chunks and embeds a creator's transcript library.
type Ingestor struct {
	Store        store.ChunkStore
	Client       ai.Client
	CreatorID    string
	Root         string
	ChunkOptions chunker.Options
	Concurrency  int
	Walker       FileSystemWalker
	FileReader   FileReader
}

// New creates an Ingestor with the default filesystem dependencies.
func New(s store.ChunkStore, client ai.Client, creatorID, root string) *Ingestor {
	return &Ingestor{
		Store:        s,
		Client:       client,
		CreatorID:    creatorID,
		Root:         root,
		ChunkOptions: chunker.DefaultOptions(),
		Concurrency:  4,
		Walker:       &DefaultFileSystemWalker{},
		FileReader:   &DefaultFileReader{},
	}
}

// Run walks the transcript root and processes every .srt and .json file.
// Per-video failures are logged and skipped; the walk itself failing is the
// only hard error.
func (ix *Ingestor) Run(ctx context.Context) error {
	return ix.Walker.Walk(ix.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".srt" && ext != ".json" {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := ix.processFile(ctx, path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("transcript ingestion failed")
			}
			return nil
		},
	})
}

func (ix *Ingestor) processFile(ctx context.Context, path string) error {
	b, err := ix.FileReader.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	tf, err := parseTranscript(path, b)
	if err != nil {
		return err
	}
	if len(tf.Segments) == 0 {
		log.Warn().Str("path", path).Msg("transcript has no segments, skipping")
		return nil
	}
	return ix.ProcessVideo(ctx, tf.VideoID, tf.Title, tf.URL, tf.Segments)
}

// ProcessVideo chunks one video's segments and upserts the chunks that pass
// the quality gate. Existing chunks of the video are superseded, never
// mutated. Embedding runs in parallel under a concurrency cap; a chunk whose
// embedding fails is skipped and logged, not fatal to the batch.
func (ix *Ingestor) ProcessVideo(ctx context.Context, videoID, title, url string, segments []models.TranscriptSegment) error {
	chunks := chunker.Chunk(segments, videoID, ix.ChunkOptions)

	kept := chunks[:0]
	for _, c := range chunks {
		if !chunker.ValidateChunk(c) {
			log.Debug().Str("video_id", videoID).Float64("start", c.StartTime).Float64("confidence", c.Confidence).Msg("chunk failed quality gate")
			continue
		}
		c.CreatorID = ix.CreatorID
		c.VideoTitle = title
		c.VideoURL = url
		kept = append(kept, c)
	}

	if err := ix.Store.DeleteVideoChunks(ctx, ix.CreatorID, videoID); err != nil {
		return fmt.Errorf("supersede chunks for %s: %w", videoID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := ix.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for _, c := range kept {
		c := c
		g.Go(func() error {
			vec, err := ix.embedWithRetry(gctx, c.Content)
			if err != nil {
				log.Warn().Err(err).Str("video_id", videoID).Str("chunk_id", c.ID).Msg("embedding failed, skipping chunk")
				return nil
			}
			if err := ix.Store.UpsertChunk(gctx, c, vec); err != nil {
				log.Error().Err(err).Str("chunk_id", c.ID).Msg("upsert failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Str("video_id", videoID).Int("segments", len(segments)).Int("chunks", len(chunks)).Int("indexed", len(kept)).Msg("video processed")
	return nil
}

func (ix *Ingestor) embedWithRetry(ctx context.Context, content string) ([]float32, error) {
	var vec []float32
	op := func() error {
		var err error
		vec, err = ix.Client.Embed(ctx, content)
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return vec, nil
}

func parseTranscript(path string, b []byte) (transcriptFile, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var tf transcriptFile
		if err := json.Unmarshal(b, &tf); err != nil {
			return transcriptFile{}, fmt.Errorf("parse transcript json: %w", err)
		}
		if tf.VideoID == "" {
			tf.VideoID = base
		}
		if tf.Title == "" {
			tf.Title = tf.VideoID
		}
		return tf, nil
	}

	segs, err := chunker.ParseSRT(string(b))
	if err != nil {
		return transcriptFile{}, err
	}
	return transcriptFile{VideoID: base, Title: base, Segments: segs}, nil
}
