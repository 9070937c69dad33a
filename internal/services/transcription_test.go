package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jainabhishek/AbhiScript/internal/config"
	"github.com/jainabhishek/AbhiScript/internal/domain"
	"github.com/jainabhishek/AbhiScript/internal/storage"
)

type fakeProvider struct {
	result *TranscriptionResult
	err    error
	block  chan struct{}
	calls  int
}

func (f *fakeProvider) Transcribe(ctx context.Context, filePath string, opts TranscriptionOptions) (*TranscriptionResult, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeProber struct {
	seconds float64
	err     error
}

func (f fakeProber) Duration(ctx context.Context, filePath string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.seconds, nil
}

func twoSpeakerResult() *TranscriptionResult {
	return &TranscriptionResult{
		Text:     "hi hello",
		Language: "en",
		Utterances: []Utterance{
			{StartMs: 0, EndMs: 2000, Text: "hi", Speaker: "A"},
			{StartMs: 2000, EndMs: 4000, Text: "hello", Speaker: "B"},
		},
	}
}

func setupOrchestratorTest(t *testing.T, provider TranscriptionProvider, prober DurationProber, speakers *SpeakerService) (*TranscriptionService, *storage.Store, string) {
	t.Helper()

	store, err := storage.NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rec, err := store.CreateRecording(context.Background(), domain.Recording{
		Filename:         "a.mp3",
		OriginalFilename: "call.mp3",
		StoragePath:      "/tmp/a.mp3",
		Status:           domain.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("create recording: %v", err)
	}

	if speakers == nil {
		speakers = NewSpeakerService(config.Config{}, store)
	}

	svc := NewTranscriptionService(store, provider, prober, speakers)
	return svc, store, rec.ID
}

func TestTranscribeAudioSuccess(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult()}
	svc, store, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 42.5}, nil)

	if err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("transcribe audio: %v", err)
	}

	rec, err := store.GetRecording(context.Background(), recordingID)
	if err != nil {
		t.Fatalf("get recording: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", rec.Status)
	}
	if rec.Duration == nil || *rec.Duration != 42.5 {
		t.Fatalf("duration = %v, want 42.5", rec.Duration)
	}

	transcript, err := store.GetTranscriptByRecording(context.Background(), recordingID)
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if transcript.SpeakerCount != 2 {
		t.Fatalf("speaker count = %d, want 2", transcript.SpeakerCount)
	}
	if transcript.Confidence != nil {
		t.Fatalf("confidence should be null, got %v", *transcript.Confidence)
	}
	if transcript.Language != "en" || transcript.RawText != "hi hello" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}

	segments, err := domain.ParseSegments(transcript.Content)
	if err != nil {
		t.Fatalf("parse segments: %v", err)
	}
	if len(segments) != 2 || segments[0].Speaker != "Speaker A" {
		t.Fatalf("segments = %+v", segments)
	}
}

func TestTranscribeAudioProviderError(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("%w: bad audio", domain.ErrProvider)}
	svc, store, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 10}, nil)

	err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions())
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	rec, _ := store.GetRecording(context.Background(), recordingID)
	if rec.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", rec.Status)
	}

	if _, err := store.GetTranscriptByRecording(context.Background(), recordingID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no transcript row may exist after provider error, got %v", err)
	}
}

func TestTranscribeAudioProbeFailureTolerated(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult()}
	prober := fakeProber{err: fmt.Errorf("%w: ffprobe missing", domain.ErrProbe)}
	svc, store, recordingID := setupOrchestratorTest(t, provider, prober, nil)

	if err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("probe failure must not fail the run: %v", err)
	}

	rec, _ := store.GetRecording(context.Background(), recordingID)
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", rec.Status)
	}
	if rec.Duration != nil {
		t.Fatalf("duration should stay unset on probe failure, got %v", *rec.Duration)
	}
}

func TestTranscribeAudioSingleSpeakerSkipsResolver(t *testing.T) {
	provider := &fakeProvider{result: &TranscriptionResult{
		Text:       "monologue",
		Utterances: []Utterance{{StartMs: 0, EndMs: 5000, Text: "monologue", Speaker: "A"}},
	}}

	store, err := storage.NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rec, err := store.CreateRecording(context.Background(), domain.Recording{
		Filename: "a.mp3", OriginalFilename: "a.mp3", StoragePath: "/tmp/a.mp3",
		Status: domain.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("create recording: %v", err)
	}

	llmCalls := 0
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls++
		w.Write([]byte(chatCompletionResponse(`{"Speaker A":"Someone"}`)))
	}))
	t.Cleanup(llm.Close)

	speakers := NewSpeakerService(config.Config{OpenAIAPIKey: "key"}, store)
	speakers.endpoint = llm.URL
	speakers.httpClient = llm.Client()

	svc := NewTranscriptionService(store, provider, fakeProber{seconds: 5}, speakers)
	if err := svc.TranscribeAudio(context.Background(), rec.ID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("transcribe audio: %v", err)
	}

	got, _ := store.GetRecording(context.Background(), rec.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if llmCalls != 0 {
		t.Fatalf("resolver must not run for a single speaker, got %d calls", llmCalls)
	}
}

func TestTranscribeAudioResolverFailureSwallowed(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult()}

	store, err := storage.NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rec, err := store.CreateRecording(context.Background(), domain.Recording{
		Filename: "a.mp3", OriginalFilename: "a.mp3", StoragePath: "/tmp/a.mp3",
		Status: domain.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("create recording: %v", err)
	}

	speakers := NewSpeakerService(config.Config{OpenAIAPIKey: "key"}, store)
	speakers.endpoint = "http://127.0.0.1:1"

	svc := NewTranscriptionService(store, provider, fakeProber{seconds: 5}, speakers)
	if err := svc.TranscribeAudio(context.Background(), rec.ID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("resolver failure must be swallowed: %v", err)
	}

	got, _ := store.GetRecording(context.Background(), rec.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
}

func TestTranscribeAudioDuplicateKeepsCompletedStatus(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult()}
	svc, store, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 5}, nil)

	if err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict from second run, got %v", err)
	}

	rec, _ := store.GetRecording(context.Background(), recordingID)
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED after duplicate run", rec.Status)
	}

	if _, err := store.GetTranscriptByRecording(context.Background(), recordingID); err != nil {
		t.Fatalf("original transcript must survive: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}
}

func TestStartTranscriptionRejectsConcurrentRun(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult(), block: make(chan struct{})}
	svc, store, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 5}, nil)

	if err := svc.StartTranscription(recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("start transcription: %v", err)
	}

	err := svc.StartTranscription(recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for in-flight recording, got %v", err)
	}

	close(provider.block)
	svc.Wait()

	rec, _ := store.GetRecording(context.Background(), recordingID)
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", rec.Status)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}
}

func TestGetTranscriptionAppliesMapping(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult()}
	svc, store, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 5}, nil)

	if err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("transcribe audio: %v", err)
	}

	encoded, _ := domain.EncodeSpeakerMapping(domain.SpeakerMapping{"Speaker A": "Jane Doe"})
	if err := store.UpdateSpeakerNames(context.Background(), recordingID, encoded, true); err != nil {
		t.Fatalf("update speaker names: %v", err)
	}

	view, err := svc.GetTranscription(context.Background(), recordingID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if view.Segments[0].Speaker != "Jane Doe" {
		t.Fatalf("mapped speaker = %q, want Jane Doe", view.Segments[0].Speaker)
	}
	if view.Segments[1].Speaker != "Speaker B" {
		t.Fatalf("unmapped speaker = %q, want Speaker B", view.Segments[1].Speaker)
	}
	if !view.SpeakersResolved || view.SpeakerCount != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestGetTranscriptionNotFound(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult()}
	svc, _, _ := setupOrchestratorTest(t, provider, fakeProber{}, nil)

	_, err := svc.GetTranscription(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTranscriptionsTruncatesPreview(t *testing.T) {
	longText := strings.Repeat("a", previewLength+50)
	provider := &fakeProvider{result: &TranscriptionResult{Text: longText}}
	svc, _, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 5}, nil)

	if err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("transcribe audio: %v", err)
	}

	summaries, err := svc.ListTranscriptions(context.Background())
	if err != nil {
		t.Fatalf("list transcriptions: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if len(summaries[0].Preview) > previewLength+len("…") {
		t.Fatalf("preview not truncated: %d bytes", len(summaries[0].Preview))
	}
}

func TestListTranscriptionsPreviewKeepsRunesIntact(t *testing.T) {
	// Three-byte runes so the byte limit lands mid-rune.
	longText := strings.Repeat("語", previewLength)
	provider := &fakeProvider{result: &TranscriptionResult{Text: longText}}
	svc, _, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 5}, nil)

	if err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("transcribe audio: %v", err)
	}

	summaries, err := svc.ListTranscriptions(context.Background())
	if err != nil {
		t.Fatalf("list transcriptions: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if !utf8.ValidString(summaries[0].Preview) {
		t.Fatalf("preview contains invalid UTF-8: %q", summaries[0].Preview)
	}
}

func TestGetSpeakerMapping(t *testing.T) {
	provider := &fakeProvider{result: twoSpeakerResult()}
	svc, store, recordingID := setupOrchestratorTest(t, provider, fakeProber{seconds: 5}, nil)

	if err := svc.TranscribeAudio(context.Background(), recordingID, "/tmp/a.mp3", DefaultTranscriptionOptions()); err != nil {
		t.Fatalf("transcribe audio: %v", err)
	}

	// No mapping stored yet.
	if _, err := svc.GetSpeakerMapping(context.Background(), recordingID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before resolution, got %v", err)
	}

	encoded, _ := domain.EncodeSpeakerMapping(domain.SpeakerMapping{"Speaker A": "Jane Doe"})
	if err := store.UpdateSpeakerNames(context.Background(), recordingID, encoded, true); err != nil {
		t.Fatalf("update speaker names: %v", err)
	}

	mapping, err := svc.GetSpeakerMapping(context.Background(), recordingID)
	if err != nil {
		t.Fatalf("get speaker mapping: %v", err)
	}
	if mapping["Speaker A"] != "Jane Doe" {
		t.Fatalf("mapping = %v", mapping)
	}
}
