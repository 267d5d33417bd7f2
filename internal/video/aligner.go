// internal/video/aligner.go
package video

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
)

// Metadata describes a probed video stream.
type Metadata struct {
	Width    int
	Height   int
	Duration float64 // seconds
}

func (m Metadata) AspectRatio() float64 {
	return float64(m.Width) / float64(m.Height)
}

// Aligner shells out to ffmpeg/ffprobe, the same toolchain the storefront's
// other media workers use.
type Aligner struct {
	ffmpegPath  string
	ffprobePath string
}

// NewAligner uses the given ffmpeg/ffprobe binaries; empty means PATH lookup
// by the conventional names.
func NewAligner(ffmpegPath, ffprobePath string) *Aligner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Aligner{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Probe reads stream dimensions and duration.
func (a *Aligner) Probe(ctx context.Context, input string) (Metadata, error) {
	if _, err := exec.LookPath(a.ffprobePath); err != nil {
		return Metadata{}, arerr.Newf(arerr.VideoProbe, "ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration",
		"-of", "default=noprint_wrappers=1",
		input,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Metadata{}, arerr.Newf(arerr.VideoProbe, "ffprobe %s: %w\noutput: %s", input, err, out)
	}

	var meta Metadata
	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			if v, err := strconv.Atoi(value); err == nil {
				meta.Width = v
			}
		case "height":
			if v, err := strconv.Atoi(value); err == nil {
				meta.Height = v
			}
		case "duration":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				meta.Duration = v
			}
		}
	}
	if meta.Width == 0 || meta.Height == 0 {
		return Metadata{}, arerr.Newf(arerr.VideoProbe, "unable to read video dimensions from %s", input)
	}
	return meta, nil
}

// Align probes input, computes the crop/resize plan against the photo's
// dimensions, and transcodes to output. Returns the executed plan.
func (a *Aligner) Align(ctx context.Context, input, output string, targetW, targetH int) (Plan, error) {
	meta, err := a.Probe(ctx, input)
	if err != nil {
		return Plan{}, err
	}

	plan := ComputePlan(meta.Width, meta.Height, targetW, targetH)
	if err := a.transcode(ctx, input, output, plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (a *Aligner) transcode(ctx context.Context, input, output string, plan Plan) error {
	if _, err := exec.LookPath(a.ffmpegPath); err != nil {
		return arerr.Newf(arerr.VideoTranscode, "ffmpeg not found in PATH: %w", err)
	}

	var filters []string
	if c := plan.Crop; c != nil {
		filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d", c.W, c.H, c.X, c.Y))
	}
	filters = append(filters, fmt.Sprintf("scale=%d:%d", plan.OutWidth, plan.OutHeight))

	// crf 23 / preset fast: constant-quality encode sized for mobile data.
	// +faststart moves the moov atom up front so playback starts while the
	// file still streams.
	args := []string{
		"-i", input,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-crf", "23",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-y",
		output,
	}

	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return arerr.Newf(arerr.VideoTranscode, "ffmpeg transcode %s: %w\noutput: %s", input, err, out)
	}
	return nil
}
