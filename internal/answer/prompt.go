package answer

import (
	"fmt"
	"sort"
	"strings"

	"vidcite/internal/chunker"
	"vidcite/pkg/models"
)

// NoKnowledgeMessage is the fixed response when nothing in the library can
// ground an answer. Returning it is a success path, not an error.
const NoKnowledgeMessage = "I don't have enough information in the video library to answer that yet. Try asking about something covered in the videos."

// BuildSystemPrompt renders the numbered context block fed to the generator.
// Candidate i (1-indexed) is labeled [i]; the generator is instructed to use
// every label at least once, in ascending order of first use, and never to
// attribute one passage's content to another label.
func BuildSystemPrompt(creatorName string, candidates []models.RetrievalCandidate) string {
	var b strings.Builder

	name := strings.TrimSpace(creatorName)
	if name == "" {
		name = "this creator"
	}
	fmt.Fprintf(&b, "You are the AI assistant for %s's video library. Answer the fan's question using ONLY the numbered passages below; every claim must come from a passage.\n\n", name)

	b.WriteString("Context passages:\n")
	for i, c := range candidates {
		title := c.VideoTitle
		if title == "" {
			title = c.VideoID
		}
		fmt.Fprintf(&b, "[%d] (%s, %s) %s\n", i+1, title, formatTimestamp(c.StartTime), strings.TrimSpace(c.Content))
	}

	if windows := stitchedContext(candidates); len(windows) > 0 {
		b.WriteString("\nSurrounding context (for understanding only; cite the numbered passages above, never this block):\n")
		for _, w := range windows {
			fmt.Fprintf(&b, "- (%s, %s-%s) %s\n", w.videoTitle,
				formatTimestamp(w.window.StartTime), formatTimestamp(w.window.EndTime),
				strings.TrimSpace(w.window.Content))
		}
	}

	fmt.Fprintf(&b, `
Citation rules:
- Mark every claim with its passage label, e.g. "preheat first [1]".
- Use every label from [1] to [%d] at least once, in ascending order of first use.
- Never attribute content from one label to another.
- If the passages do not answer the question, say you don't know instead of guessing.
`, len(candidates))

	return b.String()
}

// TimestampURL deep-links a citation to its moment in the video.
func TimestampURL(c models.RetrievalCandidate) string {
	base := c.VideoURL
	if base == "" {
		base = "https://www.youtube.com/watch?v=" + c.VideoID
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%ds", base, sep, int(c.StartTime))
}

type contextWindow struct {
	videoTitle string
	window     models.StitchedWindow
}

// stitchedContext merges runs of near-adjacent same-video candidates into
// larger windows for the generator. Only multi-chunk windows are kept; a
// single-chunk window repeats a numbered passage verbatim.
func stitchedContext(candidates []models.RetrievalCandidate) []contextWindow {
	byVideo := map[string][]models.SemanticChunk{}
	titles := map[string]string{}
	var videos []string
	for _, c := range candidates {
		if _, ok := byVideo[c.VideoID]; !ok {
			videos = append(videos, c.VideoID)
			titles[c.VideoID] = c.VideoTitle
			if titles[c.VideoID] == "" {
				titles[c.VideoID] = c.VideoID
			}
		}
		byVideo[c.VideoID] = append(byVideo[c.VideoID], models.SemanticChunk{
			ID:        c.ChunkID,
			VideoID:   c.VideoID,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Content:   c.Content,
		})
	}

	var out []contextWindow
	for _, v := range videos {
		chunks := byVideo[v]
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartTime < chunks[j].StartTime })
		covered := map[string]bool{}
		for _, w := range chunker.CreateStitchedWindows(chunks, 90) {
			if len(w.ChunkIDs) <= 1 || covered[w.ChunkIDs[0]] {
				continue
			}
			for _, id := range w.ChunkIDs {
				covered[id] = true
			}
			out = append(out, contextWindow{videoTitle: titles[v], window: w})
		}
	}
	return out
}

func formatTimestamp(seconds float64) string {
	s := int(seconds)
	if s < 0 {
		s = 0
	}
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
