package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jainabhishek/AbhiScript/internal/config"
	"github.com/jainabhishek/AbhiScript/internal/domain"
)

const (
	assemblyAIBaseURL = "https://api.assemblyai.com/v2"
	providerTimeout   = 10 * time.Minute
	pollInterval      = 3 * time.Second
)

// AssemblyAIProvider talks to the AssemblyAI v2 REST API: upload the media,
// create a transcript job, then poll until the job settles.
type AssemblyAIProvider struct {
	apiKey     string
	baseURL    string
	reqTimeout time.Duration
	httpClient *http.Client
}

func NewAssemblyAIProvider(cfg config.Config) *AssemblyAIProvider {
	return &AssemblyAIProvider{
		apiKey:     cfg.AssemblyAIAPIKey,
		baseURL:    assemblyAIBaseURL,
		reqTimeout: providerTimeout,
		httpClient: &http.Client{
			Timeout: providerTimeout,
		},
	}
}

type transcriptJob struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Error         string      `json:"error"`
	Text          string      `json:"text"`
	LanguageCode  string      `json:"language_code"`
	AudioDuration float64     `json:"audio_duration"`
	Utterances    []Utterance `json:"utterances"`
	Words         []Word      `json:"words"`
}

func (p *AssemblyAIProvider) Transcribe(ctx context.Context, filePath string, opts TranscriptionOptions) (*TranscriptionResult, error) {
	if err := p.ensureAPIKey(); err != nil {
		return nil, err
	}

	audioURL, err := p.upload(ctx, filePath)
	if err != nil {
		return nil, err
	}

	jobID, err := p.createJob(ctx, audioURL, opts)
	if err != nil {
		return nil, err
	}

	job, err := p.pollJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &TranscriptionResult{
		Text:          strings.TrimSpace(job.Text),
		Language:      job.LanguageCode,
		AudioDuration: job.AudioDuration,
		Utterances:    job.Utterances,
		Words:         job.Words,
	}, nil
}

func (p *AssemblyAIProvider) upload(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/upload", file)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", p.decodeAPIError(resp)
	}

	var payload struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	return payload.UploadURL, nil
}

func (p *AssemblyAIProvider) createJob(ctx context.Context, audioURL string, opts TranscriptionOptions) (string, error) {
	payload := map[string]any{
		"audio_url":      audioURL,
		"speaker_labels": opts.SpeakerLabels,
		"auto_chapters":  opts.AutoChapters,
		"punctuate":      opts.Punctuate,
		"format_text":    opts.FormatText,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcript", buf)
	if err != nil {
		return "", fmt.Errorf("create transcript request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", p.decodeAPIError(resp)
	}

	var job transcriptJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("decode transcript response: %w", err)
	}

	return job.ID, nil
}

func (p *AssemblyAIProvider) pollJob(ctx context.Context, jobID string) (*transcriptJob, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transcript/"+jobID, nil)
		if err != nil {
			return nil, fmt.Errorf("create poll request: %w", err)
		}
		req.Header.Set("Authorization", p.apiKey)

		resp, err := p.do(req)
		if err != nil {
			return nil, err
		}

		var job transcriptJob
		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := p.decodeAPIError(resp)
			resp.Body.Close()
			return nil, apiErr
		}
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("decode poll response: %w", err)
		}
		resp.Body.Close()

		switch job.Status {
		case "completed":
			return &job, nil
		case "error":
			return nil, fmt.Errorf("%w: %s", domain.ErrProvider, job.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (p *AssemblyAIProvider) do(req *http.Request) (*http.Response, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	return resp, nil
}

func (p *AssemblyAIProvider) decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%w: status %d: %s", domain.ErrProvider, resp.StatusCode, apiErr.Error)
	}

	return fmt.Errorf("%w: status %d body %s", domain.ErrProvider, resp.StatusCode, string(body))
}

func (p *AssemblyAIProvider) ensureAPIKey() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return errors.New("assemblyai api key is not configured")
	}
	return nil
}
