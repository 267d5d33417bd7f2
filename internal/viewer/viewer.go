// internal/viewer/viewer.go

// Package viewer renders the self-contained HTML document that runs the AR
// experience in a phone browser: A-Frame scene, image-tracking runtime,
// per-target video or image overlays. All asset references are relative so
// the storage directory stays relocatable.
package viewer

import (
	"bytes"
	"fmt"
	"os"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

// Overlay binds one tracked target to the media shown on top of it.
type Overlay struct {
	TargetIndex int
	// VideoFile is the aligned video, relative to the viewer document.
	// Empty means photo-only: ImageFile is shown instead.
	VideoFile string
	// ImageFile is the overlay image for photo-only targets.
	ImageFile string
	// MaskFile is an optional alpha mask applied to the overlay material.
	MaskFile string
	// PlaneHeight is the overlay plane height in marker units (width is 1).
	PlaneHeight float64
	// VideoAR and PlaneAR feed the runtime cover-fit math.
	VideoAR float64
	PlaneAR float64
}

// Config is everything the template needs. Fields without a listed default
// are required.
type Config struct {
	ProjectID  string
	MarkerFile string // compiled target set, relative path
	Overlays   []Overlay

	FitMode      schema.FitMode // default contain
	Zoom         float64        // default 1.0, valid 0.5-2.0
	OffsetX      float64        // valid -0.5..0.5
	OffsetY      float64
	AspectLocked bool
	AutoPlay     bool
	Loop         bool
	Position     schema.Vec3
	Rotation     schema.Vec3
}

func (c *Config) validate() error {
	if c.ProjectID == "" {
		return arerr.Newf(arerr.ViewerConfig, "project id is required")
	}
	if c.MarkerFile == "" {
		return arerr.Newf(arerr.ViewerConfig, "marker file reference is required")
	}
	if len(c.Overlays) == 0 {
		return arerr.Newf(arerr.ViewerConfig, "at least one overlay is required")
	}
	for _, o := range c.Overlays {
		if o.VideoFile == "" && o.ImageFile == "" {
			return arerr.Newf(arerr.ViewerConfig, "overlay %d has neither video nor image", o.TargetIndex)
		}
		if o.PlaneHeight <= 0 {
			return arerr.Newf(arerr.ViewerConfig, "overlay %d has invalid plane height", o.TargetIndex)
		}
	}

	switch c.FitMode {
	case "":
		c.FitMode = schema.FitContain
	case schema.FitContain, schema.FitCover, schema.FitFill, schema.FitExact:
	default:
		return arerr.Newf(arerr.ViewerConfig, "unknown fit mode %q", c.FitMode)
	}

	if c.Zoom == 0 {
		c.Zoom = 1.0
	}
	if c.Zoom < 0.5 || c.Zoom > 2.0 {
		return arerr.Newf(arerr.ViewerConfig, "zoom %.2f outside 0.5-2.0", c.Zoom)
	}
	if c.OffsetX < -0.5 || c.OffsetX > 0.5 || c.OffsetY < -0.5 || c.OffsetY > 0.5 {
		return arerr.Newf(arerr.ViewerConfig, "offset (%.2f, %.2f) outside -0.5..0.5", c.OffsetX, c.OffsetY)
	}
	return nil
}

// FromPlacement maps a job's placement options onto a Config.
func FromPlacement(projectID, markerFile string, overlays []Overlay, pc schema.PlacementConfig) Config {
	cfg := Config{
		ProjectID:    projectID,
		MarkerFile:   markerFile,
		Overlays:     overlays,
		FitMode:      pc.FitMode,
		Zoom:         pc.Zoom,
		OffsetX:      pc.OffsetX,
		OffsetY:      pc.OffsetY,
		AspectLocked: boolOr(pc.AspectLocked, true),
		AutoPlay:     boolOr(pc.AutoPlay, true),
		Loop:         boolOr(pc.Loop, true),
	}
	if pc.VideoPosition != nil {
		cfg.Position = *pc.VideoPosition
	}
	if pc.VideoRotation != nil {
		cfg.Rotation = *pc.VideoRotation
	}
	return cfg
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Render produces the viewer document.
func Render(cfg Config) ([]byte, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := viewerTemplate.Execute(&buf, &cfg); err != nil {
		return nil, arerr.Newf(arerr.ViewerConfig, "render viewer: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders and writes the document to path.
func WriteFile(cfg Config, path string) error {
	data, err := Render(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write viewer html: %w", err)
	}
	return nil
}
