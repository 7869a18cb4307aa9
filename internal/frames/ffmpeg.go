// Package frames extracts representative still frames from video files.
package frames

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/toolexec"
)

// FFmpegSampler probes the video length with ffprobe and grabs one JPEG per
// evenly spaced timestamp with ffmpeg.
type FFmpegSampler struct {
	ffmpeg  string
	ffprobe string
	run     toolexec.Runner
}

// NewFFmpegSampler creates a sampler using the given binaries. Empty paths
// fall back to the names on PATH.
func NewFFmpegSampler(ffmpegPath, ffprobePath string) *FFmpegSampler {
	return NewFFmpegSamplerWithRunner(ffmpegPath, ffprobePath, toolexec.Exec)
}

// NewFFmpegSamplerWithRunner creates a sampler with a custom command runner.
func NewFFmpegSamplerWithRunner(ffmpegPath, ffprobePath string, run toolexec.Runner) *FFmpegSampler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegSampler{ffmpeg: ffmpegPath, ffprobe: ffprobePath, run: run}
}

// Sample implements shield.FrameSampler.
func (s *FFmpegSampler) Sample(ctx context.Context, path string, count int) ([]shield.Frame, error) {
	if count <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", count)
	}

	duration, err := s.probeDuration(ctx, path)
	if err != nil {
		return nil, err
	}

	stamps := Timestamps(duration, count)
	frames := make([]shield.Frame, 0, len(stamps))
	for i, ts := range stamps {
		data, err := s.grab(ctx, path, ts)
		if err != nil {
			return nil, fmt.Errorf("extracting frame %d at %s: %w", i, ts, err)
		}
		frames = append(frames, shield.Frame{
			Index:     i,
			Timestamp: ts,
			Media:     shield.Media{Data: data, MIMEType: "image/jpeg"},
		})
	}
	return frames, nil
}

// Timestamps spreads count samples over duration, taking the midpoint of
// each of count equal segments so the first and last frames avoid fades.
func Timestamps(duration time.Duration, count int) []time.Duration {
	if count <= 0 || duration <= 0 {
		return nil
	}
	out := make([]time.Duration, count)
	for i := range out {
		out[i] = time.Duration(float64(duration) * (float64(i) + 0.5) / float64(count))
	}
	return out
}

func (s *FFmpegSampler) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	stdout, stderr, err := s.run(ctx, s.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probing duration: %w: %s", err, strings.TrimSpace(string(stderr)))
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(stdout)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", strings.TrimSpace(string(stdout)), err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("video has no duration")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (s *FFmpegSampler) grab(ctx context.Context, path string, ts time.Duration) ([]byte, error) {
	stdout, stderr, err := s.run(ctx, s.ffmpeg,
		"-v", "error",
		"-ss", strconv.FormatFloat(ts.Seconds(), 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(stderr)))
	}
	if len(stdout) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no image")
	}
	return stdout, nil
}

// NewSamplerFromConfig creates a FrameSampler based on the frames config type.
func NewSamplerFromConfig(cfg config.FramesConfig) (shield.FrameSampler, error) {
	switch cfg.Type {
	case "ffmpeg":
		return NewFFmpegSampler(cfg.FFmpegPath, cfg.FFprobePath), nil
	default:
		return nil, fmt.Errorf("unknown frames type: %s", cfg.Type)
	}
}

var _ shield.FrameSampler = (*FFmpegSampler)(nil)
