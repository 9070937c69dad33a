package services

import (
	"strings"

	"github.com/jainabhishek/AbhiScript/internal/domain"
)

// maxWordsPerSegment is a hard boundary, independent of sentence breaks.
const maxWordsPerSegment = 50

// resultShape is resolved once before normalization instead of probing the
// result repeatedly.
type resultShape int

const (
	shapeNone resultShape = iota
	shapeUtterances
	shapeWords
)

func shapeOf(res *TranscriptionResult) resultShape {
	switch {
	case len(res.Utterances) > 0:
		return shapeUtterances
	case len(res.Words) > 0:
		return shapeWords
	default:
		return shapeNone
	}
}

// NormalizeSegments converts a provider result into ordered, time-stamped
// segments. Utterance-level output maps one to one; word-level output is
// merged greedily; otherwise the whole transcript becomes a single segment.
func NormalizeSegments(res *TranscriptionResult) []domain.Segment {
	switch shapeOf(res) {
	case shapeUtterances:
		return segmentsFromUtterances(res.Utterances)
	case shapeWords:
		return segmentsFromWords(res.Words)
	default:
		return []domain.Segment{{
			Start: 0,
			End:   res.AudioDuration,
			Text:  strings.TrimSpace(res.Text),
		}}
	}
}

func segmentsFromUtterances(utterances []Utterance) []domain.Segment {
	segments := make([]domain.Segment, 0, len(utterances))
	for _, u := range utterances {
		segments = append(segments, domain.Segment{
			Start:   msToSeconds(u.StartMs),
			End:     msToSeconds(u.EndMs),
			Text:    strings.TrimSpace(u.Text),
			Speaker: speakerTag(u.Speaker),
		})
	}
	return segments
}

// segmentsFromWords accumulates consecutive words into segments. A segment
// closes when the speaker changes (the changing word opens the next segment),
// when it reaches maxWordsPerSegment words, when a word ends a sentence, or
// at the last word.
func segmentsFromWords(words []Word) []domain.Segment {
	var segments []domain.Segment

	var (
		texts     []string
		speaker   string
		startMs   int64
		endMs     int64
		wordCount int
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(texts, " "))
		if text != "" {
			segments = append(segments, domain.Segment{
				Start:   msToSeconds(startMs),
				End:     msToSeconds(endMs),
				Text:    text,
				Speaker: speaker,
			})
		}
		texts = texts[:0]
		wordCount = 0
	}

	for i, w := range words {
		tag := speakerTag(w.Speaker)
		if wordCount > 0 && tag != speaker {
			flush()
		}

		if wordCount == 0 {
			startMs = w.StartMs
			speaker = tag
		}
		texts = append(texts, w.Text)
		endMs = w.EndMs
		wordCount++

		if wordCount >= maxWordsPerSegment || endsSentence(w.Text) || i == len(words)-1 {
			flush()
		}
	}

	return segments
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

func speakerTag(speaker string) string {
	if speaker == "" {
		return ""
	}
	return "Speaker " + speaker
}

func endsSentence(text string) bool {
	return strings.HasSuffix(text, ".") ||
		strings.HasSuffix(text, "!") ||
		strings.HasSuffix(text, "?")
}

// countSpeakers returns the number of distinct speaker tags across segments,
// never less than one.
func countSpeakers(segments []domain.Segment) int {
	seen := map[string]struct{}{}
	for _, s := range segments {
		if s.Speaker != "" {
			seen[s.Speaker] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}
