package services

import "context"

// TranscriptionOptions are the request flags passed to the transcription
// provider.
type TranscriptionOptions struct {
	SpeakerLabels bool `json:"speaker_labels"`
	AutoChapters  bool `json:"auto_chapters"`
	Punctuate     bool `json:"punctuate"`
	FormatText    bool `json:"format_text"`
}

// DefaultTranscriptionOptions enables everything the orchestrator relies on.
func DefaultTranscriptionOptions() TranscriptionOptions {
	return TranscriptionOptions{
		SpeakerLabels: true,
		AutoChapters:  true,
		Punctuate:     true,
		FormatText:    true,
	}
}

// Utterance is one speaker turn as reported by the provider. Times are
// milliseconds.
type Utterance struct {
	StartMs int64  `json:"start"`
	EndMs   int64  `json:"end"`
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

// Word is one recognized word. Times are milliseconds; Speaker may be empty
// when the provider did not attribute the word.
type Word struct {
	StartMs int64  `json:"start"`
	EndMs   int64  `json:"end"`
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

// TranscriptionResult is the provider output the orchestrator consumes.
// Utterances and Words may both be empty; the normalizer falls back to a
// single whole-transcript segment in that case.
type TranscriptionResult struct {
	Text          string
	Language      string
	AudioDuration float64 // seconds
	Utterances    []Utterance
	Words         []Word
}

// TranscriptionProvider is the pluggable speech-to-text backend.
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, filePath string, opts TranscriptionOptions) (*TranscriptionResult, error)
}
