package services

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jainabhishek/AbhiScript/internal/domain"
)

const ffprobeBinary = "ffprobe"

// DurationProber reports a media file's duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, filePath string) (float64, error)
}

// FFProbe shells out to ffprobe and parses its decimal seconds output.
type FFProbe struct{}

func NewFFProbe() FFProbe {
	return FFProbe{}
}

func (FFProbe) Duration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrProbe, err)
	}

	value, err := decimal.NewFromString(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration %q: %v", domain.ErrProbe, strings.TrimSpace(string(out)), err)
	}

	seconds, _ := value.Float64()
	return seconds, nil
}
