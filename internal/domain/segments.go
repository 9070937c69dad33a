package domain

import (
	"encoding/json"
	"fmt"
)

// ParseSegments decodes the JSON segment list stored in Transcript.Content.
func ParseSegments(content string) ([]Segment, error) {
	if content == "" {
		return nil, nil
	}

	var segments []Segment
	if err := json.Unmarshal([]byte(content), &segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return segments, nil
}

// EncodeSegments serializes segments for storage in Transcript.Content.
func EncodeSegments(segments []Segment) (string, error) {
	if segments == nil {
		segments = []Segment{}
	}

	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("encode segments: %w", err)
	}
	return string(data), nil
}

// ParseSpeakerMapping decodes the JSON mapping stored in
// Transcript.SpeakerNames. An empty value yields a nil mapping.
func ParseSpeakerMapping(value string) (SpeakerMapping, error) {
	if value == "" {
		return nil, nil
	}

	var mapping SpeakerMapping
	if err := json.Unmarshal([]byte(value), &mapping); err != nil {
		return nil, fmt.Errorf("decode speaker mapping: %w", err)
	}
	return mapping, nil
}

// EncodeSpeakerMapping serializes a mapping for storage in
// Transcript.SpeakerNames.
func EncodeSpeakerMapping(mapping SpeakerMapping) (string, error) {
	if mapping == nil {
		mapping = SpeakerMapping{}
	}

	data, err := json.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("encode speaker mapping: %w", err)
	}
	return string(data), nil
}
