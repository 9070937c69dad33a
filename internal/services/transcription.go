package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jainabhishek/AbhiScript/internal/domain"
)

const previewLength = 200

type transcriptionStore interface {
	GetRecording(ctx context.Context, id string) (domain.Recording, error)
	UpdateRecordingStatus(ctx context.Context, id, status string) error
	UpdateRecordingDuration(ctx context.Context, id string, seconds float64) error
	CreateTranscript(ctx context.Context, transcript domain.Transcript) (domain.Transcript, error)
	GetTranscriptByRecording(ctx context.Context, recordingID string) (domain.Transcript, error)
	DeleteTranscriptByRecording(ctx context.Context, recordingID string) error
	ListTranscripts(ctx context.Context) ([]domain.Transcript, error)
}

// TranscriptionView is the read-side shape returned for one recording:
// transcript metadata plus segments overlaid with resolved speaker names.
type TranscriptionView struct {
	RecordingID      string           `json:"recordingId"`
	Text             string           `json:"text"`
	Segments         []domain.Segment `json:"segments"`
	Language         string           `json:"language,omitempty"`
	SpeakerCount     int              `json:"speakerCount"`
	Confidence       *float64         `json:"confidence,omitempty"`
	SpeakersResolved bool             `json:"speakersResolved"`
	Duration         *float64         `json:"duration,omitempty"`
	CreatedAt        int64            `json:"createdAt"`
	UpdatedAt        int64            `json:"updatedAt"`
}

// TranscriptSummary is the list-view shape with a truncated text preview.
type TranscriptSummary struct {
	RecordingID  string `json:"recordingId"`
	Preview      string `json:"preview"`
	Language     string `json:"language,omitempty"`
	SpeakerCount int    `json:"speakerCount"`
	CreatedAt    int64  `json:"createdAt"`
}

// TranscriptionService drives a recording through its processing lifecycle:
// provider call, segment normalization, persistence, optional speaker
// resolution, terminal status.
type TranscriptionService struct {
	store    transcriptionStore
	provider TranscriptionProvider
	prober   DurationProber
	speakers *SpeakerService

	wg         sync.WaitGroup
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewTranscriptionService(store transcriptionStore, provider TranscriptionProvider, prober DurationProber, speakers *SpeakerService) *TranscriptionService {
	return &TranscriptionService{
		store:    store,
		provider: provider,
		prober:   prober,
		speakers: speakers,
		inflight: map[string]struct{}{},
	}
}

// StartTranscription launches a transcription run in the background and
// returns immediately. A run already in flight for the same recording is
// rejected with ErrConflict.
func (s *TranscriptionService) StartTranscription(recordingID, filePath string, opts TranscriptionOptions) error {
	if !s.markInflight(recordingID) {
		return fmt.Errorf("%w: transcription already in progress for recording %s", domain.ErrConflict, recordingID)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.clearInflight(recordingID)

		if err := s.TranscribeAudio(context.Background(), recordingID, filePath, opts); err != nil {
			log.Printf("transcription failed for recording %s: %v", recordingID, err)
		}
	}()

	return nil
}

// Wait blocks until all background runs have finished. Used on shutdown.
func (s *TranscriptionService) Wait() {
	s.wg.Wait()
}

// TranscribeAudio runs the full pipeline synchronously. Any failure before
// the terminal status marks the recording FAILED and is returned to the
// caller; probe and resolver failures are tolerated as documented.
func (s *TranscriptionService) TranscribeAudio(ctx context.Context, recordingID, filePath string, opts TranscriptionOptions) error {
	// A recording with a stored transcript is already done; reject the rerun
	// before touching its status.
	if _, err := s.store.GetTranscriptByRecording(ctx, recordingID); err == nil {
		return fmt.Errorf("%w: recording %s already has a transcript", domain.ErrConflict, recordingID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if err := s.store.UpdateRecordingStatus(ctx, recordingID, domain.StatusTranscribing); err != nil {
		return err
	}

	result, err := s.provider.Transcribe(ctx, filePath, opts)
	if err != nil {
		s.markFailed(ctx, recordingID)
		return err
	}

	duration, err := s.prober.Duration(ctx, filePath)
	if err != nil {
		log.Printf("duration probe failed for recording %s: %v", recordingID, err)
		duration = 0
	}

	segments := NormalizeSegments(result)
	speakerCount := countSpeakers(segments)

	content, err := domain.EncodeSegments(segments)
	if err != nil {
		s.markFailed(ctx, recordingID)
		return err
	}

	transcript := domain.Transcript{
		ID:           uuid.NewString(),
		RecordingID:  recordingID,
		Content:      content,
		RawText:      result.Text,
		SpeakerCount: speakerCount,
		Language:     result.Language,
	}
	if _, err := s.store.CreateTranscript(ctx, transcript); err != nil {
		// A transcript already stored for this recording means another run
		// finished first. The existing result stands; leave the status alone.
		if errors.Is(err, domain.ErrConflict) {
			return err
		}
		s.markFailed(ctx, recordingID)
		return err
	}

	if duration > 0 {
		if err := s.store.UpdateRecordingDuration(ctx, recordingID, duration); err != nil {
			s.markFailed(ctx, recordingID)
			return err
		}
	}

	if s.speakers != nil && s.speakers.Enabled() && speakerCount > 1 {
		if _, err := s.speakers.IdentifySpeakers(ctx, recordingID, segments, result.Text); err != nil {
			log.Printf("speaker identification failed for recording %s: %v", recordingID, err)
		}
	}

	if err := s.store.UpdateRecordingStatus(ctx, recordingID, domain.StatusCompleted); err != nil {
		return err
	}

	return nil
}

// GetTranscription loads the stored transcript and returns it with speaker
// names applied to its segments.
func (s *TranscriptionService) GetTranscription(ctx context.Context, recordingID string) (*TranscriptionView, error) {
	transcript, err := s.store.GetTranscriptByRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	recording, err := s.store.GetRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	segments, err := domain.ParseSegments(transcript.Content)
	if err != nil {
		return nil, err
	}

	mapping, err := domain.ParseSpeakerMapping(transcript.SpeakerNames)
	if err != nil {
		return nil, err
	}

	return &TranscriptionView{
		RecordingID:      recordingID,
		Text:             transcript.RawText,
		Segments:         ApplySpeakerNames(segments, mapping),
		Language:         transcript.Language,
		SpeakerCount:     transcript.SpeakerCount,
		Confidence:       transcript.Confidence,
		SpeakersResolved: transcript.SpeakersResolved,
		Duration:         recording.Duration,
		CreatedAt:        transcript.CreatedAt,
		UpdatedAt:        transcript.UpdatedAt,
	}, nil
}

// DeleteTranscription removes the transcript for a recording.
func (s *TranscriptionService) DeleteTranscription(ctx context.Context, recordingID string) error {
	return s.store.DeleteTranscriptByRecording(ctx, recordingID)
}

// ListTranscriptions returns summaries with a truncated text preview.
func (s *TranscriptionService) ListTranscriptions(ctx context.Context) ([]TranscriptSummary, error) {
	transcripts, err := s.store.ListTranscripts(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]TranscriptSummary, 0, len(transcripts))
	for _, t := range transcripts {
		preview := t.RawText
		if len(preview) > previewLength {
			preview = truncateText(preview, previewLength) + "…"
		}
		summaries = append(summaries, TranscriptSummary{
			RecordingID:  t.RecordingID,
			Preview:      preview,
			Language:     t.Language,
			SpeakerCount: t.SpeakerCount,
			CreatedAt:    t.CreatedAt,
		})
	}
	return summaries, nil
}

// GetSpeakerMapping returns the stored mapping, or ErrNotFound when speakers
// have not been resolved for the recording.
func (s *TranscriptionService) GetSpeakerMapping(ctx context.Context, recordingID string) (domain.SpeakerMapping, error) {
	transcript, err := s.store.GetTranscriptByRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	if transcript.SpeakerNames == "" {
		return nil, fmt.Errorf("%w: no speaker mapping for recording %s", domain.ErrNotFound, recordingID)
	}

	return domain.ParseSpeakerMapping(transcript.SpeakerNames)
}

func (s *TranscriptionService) markInflight(recordingID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, exists := s.inflight[recordingID]; exists {
		return false
	}
	s.inflight[recordingID] = struct{}{}
	return true
}

func (s *TranscriptionService) clearInflight(recordingID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, recordingID)
}

// truncateText cuts s to at most limit bytes, backing off so the cut never
// lands inside a multi-byte rune.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (s *TranscriptionService) markFailed(ctx context.Context, recordingID string) {
	if err := s.store.UpdateRecordingStatus(ctx, recordingID, domain.StatusFailed); err != nil {
		log.Printf("failed to mark recording %s as failed: %v", recordingID, err)
	}
}
