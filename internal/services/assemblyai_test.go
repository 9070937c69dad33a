package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jainabhishek/AbhiScript/internal/config"
	"github.com/jainabhishek/AbhiScript/internal/domain"
)

func newFakeAssemblyAI(t *testing.T, job transcriptJob) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/upload/abc"})
	})
	mux.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		if req["speaker_labels"] != true || req["punctuate"] != true {
			http.Error(w, `{"error":"missing options"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(transcriptJob{ID: "job-1", Status: "queued"})
	})
	mux.HandleFunc("/transcript/job-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(job)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, srv *httptest.Server) (*AssemblyAIProvider, string) {
	t.Helper()

	provider := NewAssemblyAIProvider(config.Config{AssemblyAIAPIKey: "key"})
	provider.baseURL = srv.URL
	provider.httpClient = srv.Client()

	mediaPath := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(mediaPath, []byte("fake audio"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	return provider, mediaPath
}

func TestAssemblyAITranscribe(t *testing.T) {
	srv := newFakeAssemblyAI(t, transcriptJob{
		ID:            "job-1",
		Status:        "completed",
		Text:          "hi hello",
		LanguageCode:  "en",
		AudioDuration: 4,
		Utterances: []Utterance{
			{StartMs: 0, EndMs: 2000, Text: "hi", Speaker: "A"},
			{StartMs: 2000, EndMs: 4000, Text: "hello", Speaker: "B"},
		},
	})
	provider, mediaPath := newTestProvider(t, srv)

	result, err := provider.Transcribe(context.Background(), mediaPath, DefaultTranscriptionOptions())
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text != "hi hello" || result.Language != "en" || result.AudioDuration != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Utterances) != 2 || result.Utterances[1].Speaker != "B" {
		t.Fatalf("utterances = %+v", result.Utterances)
	}
}

func TestAssemblyAITranscribeErrorStatus(t *testing.T) {
	srv := newFakeAssemblyAI(t, transcriptJob{
		ID:     "job-1",
		Status: "error",
		Error:  "audio file is corrupted",
	})
	provider, mediaPath := newTestProvider(t, srv)

	_, err := provider.Transcribe(context.Background(), mediaPath, DefaultTranscriptionOptions())
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "audio file is corrupted") {
		t.Fatalf("provider message must be carried: %v", err)
	}
}

func TestAssemblyAITranscribeMissingKey(t *testing.T) {
	provider := NewAssemblyAIProvider(config.Config{})

	if _, err := provider.Transcribe(context.Background(), "nope.mp3", DefaultTranscriptionOptions()); err == nil {
		t.Fatalf("expected error without api key")
	}
}
