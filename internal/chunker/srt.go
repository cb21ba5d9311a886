package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"vidcite/pkg/models"
)

// ParseSRT parses SubRip transcript text into ordered segments.
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
//
// Multi-line cues are joined with a space; sequence numbers are skipped.
func ParseSRT(transcript string) ([]models.TranscriptSegment, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}

	var segs []models.TranscriptSegment
	var cur *models.TranscriptSegment

	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if cur != nil && cur.Text != "" {
				segs = append(segs, *cur)
			}
			cur = nil
			continue
		}
		if isDigitOnly(line) && cur == nil {
			continue
		}
		if strings.Contains(line, "-->") {
			parts := strings.SplitN(line, "-->", 2)
			start, err := parseTimestamp(strings.TrimSpace(parts[0]))
			if err != nil {
				return nil, fmt.Errorf("parse srt start time %q: %w", parts[0], err)
			}
			end, err := parseTimestamp(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("parse srt end time %q: %w", parts[1], err)
			}
			cur = &models.TranscriptSegment{Start: start, End: end}
			continue
		}
		if cur != nil {
			if cur.Text != "" {
				cur.Text += " "
			}
			cur.Text += line
		}
	}
	if cur != nil && cur.Text != "" {
		segs = append(segs, *cur)
	}
	return segs, nil
}

// parseTimestamp converts "HH:MM:SS,mmm" (or "HH:MM:SS.mmm") to seconds.
func parseTimestamp(ts string) (float64, error) {
	ts = strings.ReplaceAll(ts, ",", ".")
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("want HH:MM:SS,mmm got %q", ts)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return float64(h)*3600 + float64(m)*60 + s, nil
}

func isDigitOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
