package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jainabhishek/AbhiScript/internal/config"
	"github.com/jainabhishek/AbhiScript/internal/domain"
)

const (
	chatCompletionsEndpoint = "https://api.openai.com/v1/chat/completions"
	resolverTimeout         = 2 * time.Minute
	promptSegmentLimit      = 50
	promptExcerptLimit      = 2000
)

var speakerSystemPrompt = "You are an expert at identifying speakers in conversation transcripts. " +
	"Given a transcript with generic speaker labels, infer who each speaker is. " +
	"Prefer full real names when they are mentioned in the conversation. " +
	"When no name is stated, use a short descriptive role or company identifier instead. " +
	"Be internally consistent across the whole transcript. " +
	"Return strictly a flat JSON object mapping each speaker label to a name, with no other text."

type speakerStore interface {
	GetTranscriptByRecording(ctx context.Context, recordingID string) (domain.Transcript, error)
	UpdateSpeakerNames(ctx context.Context, recordingID string, names string, resolved bool) error
}

// SpeakerService resolves generic speaker tags to human-readable names via a
// single chat-completion call. When no API key is configured the capability
// is disabled and Enabled reports false.
type SpeakerService struct {
	apiKey     string
	model      string
	endpoint   string
	reqTimeout time.Duration
	httpClient *http.Client
	store      speakerStore
}

func NewSpeakerService(cfg config.Config, store speakerStore) *SpeakerService {
	return &SpeakerService{
		apiKey:     cfg.OpenAIAPIKey,
		model:      cfg.OpenAIModel,
		endpoint:   chatCompletionsEndpoint,
		reqTimeout: resolverTimeout,
		httpClient: &http.Client{
			Timeout: resolverTimeout,
		},
		store: store,
	}
}

func (s *SpeakerService) Enabled() bool {
	return strings.TrimSpace(s.apiKey) != ""
}

// IdentifySpeakers asks the language model for a speaker-tag→name mapping,
// persists it and marks the transcript as resolved. A malformed or missing
// model response fails the whole operation; no partial mapping is kept.
func (s *SpeakerService) IdentifySpeakers(ctx context.Context, recordingID string, segments []domain.Segment, fullText string) (domain.SpeakerMapping, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: openai api key is not configured", domain.ErrResolution)
	}

	mapping, err := s.requestMapping(ctx, segments, fullText)
	if err != nil {
		return nil, err
	}

	encoded, err := domain.EncodeSpeakerMapping(mapping)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResolution, err)
	}

	if err := s.store.UpdateSpeakerNames(ctx, recordingID, encoded, true); err != nil {
		return nil, err
	}

	return mapping, nil
}

// ReIdentifySpeakers reloads the persisted transcript and runs identification
// again, overwriting any previous mapping.
func (s *SpeakerService) ReIdentifySpeakers(ctx context.Context, recordingID string) (domain.SpeakerMapping, error) {
	transcript, err := s.store.GetTranscriptByRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	segments, err := domain.ParseSegments(transcript.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResolution, err)
	}

	return s.IdentifySpeakers(ctx, recordingID, segments, transcript.RawText)
}

// ApplyNamesToSegments returns new segments with each speaker tag replaced by
// its stored mapped name when one exists. Unmapped tags and tag-less segments
// pass through unchanged.
func (s *SpeakerService) ApplyNamesToSegments(ctx context.Context, recordingID string, segments []domain.Segment) ([]domain.Segment, error) {
	transcript, err := s.store.GetTranscriptByRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	mapping, err := domain.ParseSpeakerMapping(transcript.SpeakerNames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResolution, err)
	}

	return ApplySpeakerNames(segments, mapping), nil
}

// ApplySpeakerNames overlays a mapping onto segments without mutating the
// input.
func ApplySpeakerNames(segments []domain.Segment, mapping domain.SpeakerMapping) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	for i, seg := range segments {
		if name, ok := mapping[seg.Speaker]; ok && seg.Speaker != "" {
			seg.Speaker = name
		}
		out[i] = seg
	}
	return out
}

func (s *SpeakerService) requestMapping(ctx context.Context, segments []domain.Segment, fullText string) (domain.SpeakerMapping, error) {
	payload := map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": speakerSystemPrompt},
			{"role": "user", "content": buildSpeakerPrompt(segments, fullText)},
		},
		"temperature":     0.2,
		"response_format": map[string]string{"type": "json_object"},
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode resolver payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, buf)
	if err != nil {
		return nil, fmt.Errorf("create resolver request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResolution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: status %d", domain.ErrResolution, resp.StatusCode)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrResolution, err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion returned", domain.ErrResolution)
	}

	var mapping domain.SpeakerMapping
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &mapping); err != nil {
		return nil, fmt.Errorf("%w: malformed mapping: %v", domain.ErrResolution, err)
	}

	return mapping, nil
}

// buildSpeakerPrompt renders at most promptSegmentLimit segments as
// "[mm:ss] label: text" lines. Segments without a speaker tag get a cyclic
// Speaker A..J label for prompt readability only; it is never persisted.
func buildSpeakerPrompt(segments []domain.Segment, fullText string) string {
	var b strings.Builder
	b.WriteString("Identify the speakers in this conversation.\n\nTranscript sample:\n")

	limit := len(segments)
	if limit > promptSegmentLimit {
		limit = promptSegmentLimit
	}
	for i := 0; i < limit; i++ {
		seg := segments[i]
		label := seg.Speaker
		if label == "" {
			label = "Speaker " + string(rune('A'+i%10))
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", formatTimestamp(seg.Start), label, seg.Text)
	}

	excerpt := truncateText(fullText, promptExcerptLimit)
	if strings.TrimSpace(excerpt) != "" {
		b.WriteString("\nFull transcript excerpt:\n")
		b.WriteString(excerpt)
	}

	return b.String()
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
