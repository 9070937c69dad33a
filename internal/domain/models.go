package domain

// Recording identifies one uploaded media file and tracks its processing
// lifecycle.
type Recording struct {
	ID               string   `json:"id"`
	UserID           string   `json:"userId,omitempty"`
	Filename         string   `json:"filename"`
	OriginalFilename string   `json:"originalFilename"`
	SizeBytes        int64    `json:"sizeBytes"`
	Duration         *float64 `json:"duration,omitempty"`
	StoragePath      string   `json:"storagePath"`
	ContentHash      string   `json:"contentHash,omitempty"`
	Status           string   `json:"status"`
	CreatedAt        int64    `json:"createdAt"`
	UpdatedAt        int64    `json:"updatedAt"`
}

// Transcript holds the transcription output for a recording, at most one per
// recording. Segments and the speaker mapping are serialized as JSON text in
// Content and SpeakerNames.
type Transcript struct {
	ID               string   `json:"id"`
	RecordingID      string   `json:"recordingId"`
	Content          string   `json:"content"`
	RawText          string   `json:"rawText"`
	SpeakerCount     int      `json:"speakerCount"`
	Confidence       *float64 `json:"confidence,omitempty"`
	Language         string   `json:"language,omitempty"`
	SpeakerNames     string   `json:"speakerNames,omitempty"`
	SpeakersResolved bool     `json:"speakersResolved"`
	CreatedAt        int64    `json:"createdAt"`
	UpdatedAt        int64    `json:"updatedAt"`
}

// Segment is a contiguous time-stamped span of transcript text, optionally
// attributed to a speaker tag such as "Speaker A". Times are in seconds.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// SpeakerMapping maps a speaker tag to a human-readable name or role.
// Tags absent from the mapping fall back to the raw tag at render time.
type SpeakerMapping map[string]string

// AiInsight holds structured analysis content keyed by recording and type.
type AiInsight struct {
	ID          string `json:"id"`
	RecordingID string `json:"recordingId"`
	InsightType string `json:"insightType"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"createdAt"`
}

const (
	StatusUploading    = "UPLOADING"
	StatusProcessing   = "PROCESSING"
	StatusTranscribing = "TRANSCRIBING"
	StatusDiarizing    = "DIARIZING" // reserved, not set by the current flow
	StatusAnalyzing    = "ANALYZING" // reserved, not set by the current flow
	StatusCompleted    = "COMPLETED"
	StatusFailed       = "FAILED"
)
