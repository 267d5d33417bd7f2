// internal/pipeline/pipeline.go

// Package pipeline sequences one AR compilation job: prepare photos, compile
// the marker (cache-checked), align videos, render the viewer, generate the
// QR code. Each stage is a hard boundary; the first failure aborts the rest,
// removes everything this run wrote, and surfaces the failing stage's error.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/disintegration/imaging"

	"github.com/photobooksgallery/ar-compiler/internal/arerr"
	"github.com/photobooksgallery/ar-compiler/internal/imageprep"
	"github.com/photobooksgallery/ar-compiler/internal/marker"
	"github.com/photobooksgallery/ar-compiler/internal/markercache"
	"github.com/photobooksgallery/ar-compiler/internal/qr"
	"github.com/photobooksgallery/ar-compiler/internal/storage"
	"github.com/photobooksgallery/ar-compiler/internal/video"
	"github.com/photobooksgallery/ar-compiler/internal/viewer"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

// VideoAligner is the subset of the video package the pipeline invokes.
// Tests substitute a fake so pipeline behavior is checkable without ffmpeg.
type VideoAligner interface {
	Align(ctx context.Context, input, output string, targetW, targetH int) (video.Plan, error)
}

// StageObserver receives stage transitions for progress reporting. May be nil.
type StageObserver func(stage schema.CompileStage)

// Options configure a Pipeline.
type Options struct {
	// PublicBaseURL fronts the share links, e.g. https://photobooksgallery.am.
	PublicBaseURL   string
	MaxDimension    int
	EnhanceBorder   bool
	PrepConcurrency int
}

// Pipeline owns the per-job compilation workflow. One Pipeline serves many
// jobs; all mutable state is job-local except the marker cache, which is
// safe for concurrent use.
type Pipeline struct {
	compiler *marker.Compiler
	cache    *markercache.Cache
	aligner  VideoAligner
	store    *storage.Manager
	opts     Options
	logger   *slog.Logger
}

func New(compiler *marker.Compiler, cache *markercache.Cache, aligner VideoAligner, store *storage.Manager, opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		compiler: compiler,
		cache:    cache,
		aligner:  aligner,
		store:    store,
		opts:     opts,
		logger:   logger,
	}
}

// run-scoped bookkeeping: artifacts written by this attempt, removed on
// failure so a broken viewer is never advertised as ready.
type attempt struct {
	layout  storage.Layout
	written []string
}

func (a *attempt) wrote(path string) { a.written = append(a.written, path) }

// Run executes the job to its terminal result. It never returns a Go error:
// every failure is folded into the result so the caller does exactly one
// webhook call either way.
func (p *Pipeline) Run(ctx context.Context, job *schema.CompilationJob, observe StageObserver) *schema.CompilationResult {
	start := time.Now()
	logger := p.logger.With("project_id", job.ProjectID)
	notify := func(stage schema.CompileStage) {
		if observe != nil {
			observe(stage)
		}
	}
	notify(schema.StageReceived)

	photos := job.Photos()
	res, err := p.run(ctx, job, photos, notify, logger)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		logger.Error("compilation failed", "err", err, "elapsed_ms", elapsed)
		notify(schema.StageFailed)
		return &schema.CompilationResult{
			Success:           false,
			Error:             err.Error(),
			FailureType:       arerr.FailureOf(err),
			FailedStep:        string(stageOf(err)),
			CompilationTimeMs: elapsed,
		}
	}

	res.CompilationTimeMs = elapsed
	logger.Info("compilation succeeded", "elapsed_ms", elapsed, "markers", res.Metadata.MarkersCount, "cache_hit", res.Metadata.CacheHit)
	notify(schema.StageSucceeded)
	return res
}

func (p *Pipeline) run(ctx context.Context, job *schema.CompilationJob, photos []string, notify StageObserver, logger *slog.Logger) (*schema.CompilationResult, error) {
	if len(photos) == 0 {
		return nil, arerr.Newf(arerr.ImageDecode, "job has no photos")
	}
	if job.StorageDir == "" {
		return nil, arerr.Newf(arerr.ImageDecode, "job has no storage directory")
	}
	if n := job.Config.MarkerCount; n > 0 && n != len(photos) {
		return nil, arerr.Newf(arerr.ViewerConfig, "config expects %d markers, job has %d photos", n, len(photos))
	}

	att := &attempt{layout: storage.Layout{Dir: job.StorageDir}}
	cleanup := func(err error) error {
		for _, path := range att.written {
			_ = os.Remove(path)
		}
		return err
	}

	// Stage 1: prepare photos.
	notify(schema.StagePreparing)
	prepared, err := imageprep.PrepareAll(ctx, photos, job.Masks(), imageprep.Options{
		MaxDimension:  p.opts.MaxDimension,
		EnhanceBorder: p.opts.EnhanceBorder,
		Shape:         job.ShapeType,
		Concurrency:   p.opts.PrepConcurrency,
	})
	if err != nil {
		return nil, cleanup(err)
	}
	maskFiles, err := p.writePreparedArtifacts(att, prepared)
	if err != nil {
		return nil, cleanup(err)
	}
	logger.Info("photos prepared", "count", len(prepared), "enhanced", p.opts.EnhanceBorder, "shape", string(job.ShapeType))

	// Stage 2: compile the marker, cache first.
	notify(schema.StageCompiling)
	markerData, cacheHit, err := p.compileMarker(prepared, logger)
	if err != nil {
		return nil, cleanup(err)
	}
	if err := writeFileTracked(att, att.layout.MarkerPath(), markerData); err != nil {
		return nil, cleanup(arerr.New(arerr.CompilerCrash, err))
	}

	// Stage 3: align videos with their photos.
	notify(schema.StageAligning)
	videos := job.Videos()
	plans := make([]*video.Plan, len(prepared))
	for i, src := range videos {
		if src == "" {
			continue
		}
		dst := att.layout.VideoPath(i)
		plan, err := p.aligner.Align(ctx, src, dst, prepared[i].Width, prepared[i].Height)
		if err != nil {
			return nil, cleanup(err)
		}
		att.wrote(dst)
		plans[i] = &plan
		logger.Info("video aligned", "target", i, "src", fmt.Sprintf("%dx%d", plan.SrcWidth, plan.SrcHeight), "out", fmt.Sprintf("%dx%d", plan.OutWidth, plan.OutHeight), "cropped", plan.Crop != nil)
	}

	// Stage 4: render the viewer.
	notify(schema.StageRendering)
	overlays := p.buildOverlays(att.layout, prepared, videos, plans)
	viewerCfg := viewer.FromPlacement(job.ProjectID, storage.MarkerFile, overlays, job.Config)
	if err := viewer.WriteFile(viewerCfg, att.layout.ViewerPath()); err != nil {
		return nil, cleanup(err)
	}
	att.wrote(att.layout.ViewerPath())

	// Stage 5: QR code for the share link.
	notify(schema.StageQrGenerating)
	viewURL := p.opts.PublicBaseURL + "/ar/view/" + job.ProjectID
	if err := qr.Generate(viewURL, att.layout.QRPath()); err != nil {
		return nil, cleanup(err)
	}
	att.wrote(att.layout.QRPath())

	meta := p.buildMetadata(prepared, plans, maskFiles, cacheHit, int64(len(markerData)), job)
	return &schema.CompilationResult{
		Success:       true,
		MarkerMindURL: p.store.PublicURL(att.layout.MarkerPath()),
		ViewerHTMLURL: p.store.PublicURL(att.layout.ViewerPath()),
		QRCodeURL:     p.store.PublicURL(att.layout.QRPath()),
		ViewURL:       viewURL,
		Metadata:      meta,
	}, nil
}

// writePreparedArtifacts saves the display photo, overlay image, and mask
// for every prepared target.
func (p *Pipeline) writePreparedArtifacts(att *attempt, prepared []*imageprep.PreparedImage) ([]string, error) {
	var maskFiles []string
	for i, prep := range prepared {
		display := att.layout.DisplayPhotoPath(i)
		if err := imaging.Save(prep.DisplayImage, display, imaging.JPEGQuality(95)); err != nil {
			return nil, arerr.Newf(arerr.ImageDecode, "save display photo %d: %w", i, err)
		}
		att.wrote(display)

		overlaySrc := prep.CompileImage
		if prep.MaskedImage != nil {
			overlaySrc = prep.MaskedImage
		}
		overlay := att.layout.OverlayImagePath(i)
		if err := imaging.Save(overlaySrc, overlay); err != nil {
			return nil, arerr.Newf(arerr.ImageDecode, "save overlay image %d: %w", i, err)
		}
		att.wrote(overlay)

		if prep.Mask != nil {
			maskPath := att.layout.MaskPath(i)
			if err := imaging.Save(prep.Mask, maskPath); err != nil {
				return nil, arerr.Newf(arerr.MaskApply, "save mask %d: %w", i, err)
			}
			att.wrote(maskPath)
			maskFiles = append(maskFiles, att.layout.MaskFile(i))
		}
	}
	return maskFiles, nil
}

func (p *Pipeline) compileMarker(prepared []*imageprep.PreparedImage, logger *slog.Logger) ([]byte, bool, error) {
	key := markercache.Key(prepared, p.compiler.Params().Fingerprint())

	if data, ok, err := p.cache.Get(key); err != nil {
		logger.Warn("cache read failed, recompiling", "err", err)
	} else if ok {
		logger.Info("marker cache hit", "key", key[:12], "size", len(data))
		return data, true, nil
	}

	images := make([]*image.NRGBA, len(prepared))
	for i, prep := range prepared {
		images[i] = prep.CompileImage
	}

	ts, err := p.compiler.Compile(images)
	if err != nil {
		return nil, false, err
	}
	data, err := ts.Encode()
	if err != nil {
		return nil, false, err
	}

	if err := p.cache.Put(key, data); err != nil {
		// A cache write failure costs a future recompile, not this job.
		logger.Warn("cache write failed", "err", err)
	}
	logger.Info("marker compiled", "key", key[:12], "targets", len(ts.Targets), "size", len(data))
	return data, false, nil
}

func (p *Pipeline) buildOverlays(layout storage.Layout, prepared []*imageprep.PreparedImage, videos []string, plans []*video.Plan) []viewer.Overlay {
	overlays := make([]viewer.Overlay, len(prepared))
	for i, prep := range prepared {
		o := viewer.Overlay{
			TargetIndex: i,
			PlaneHeight: float64(prep.Height) / float64(prep.Width),
			PlaneAR:     prep.AspectRatio(),
		}
		if videos[i] != "" {
			o.VideoFile = layout.VideoFile(i)
			if plans[i] != nil {
				o.VideoAR = float64(plans[i].OutWidth) / float64(plans[i].OutHeight)
			}
		} else {
			o.ImageFile = layout.OverlayImageFile(i)
		}
		if prep.Mask != nil {
			o.MaskFile = layout.MaskFile(i)
		}
		overlays[i] = o
	}
	return overlays
}

func (p *Pipeline) buildMetadata(prepared []*imageprep.PreparedImage, plans []*video.Plan, maskFiles []string, cacheHit bool, markerSize int64, job *schema.CompilationJob) *schema.ResultMetadata {
	first := prepared[0]
	meta := &schema.ResultMetadata{
		MarkersCount:     len(prepared),
		MultiTarget:      len(prepared) > 1,
		PhotoWidth:       first.Width,
		PhotoHeight:      first.Height,
		PhotoAspectRatio: fmt.Sprintf("%.3f", first.AspectRatio()),
		FitMode:          string(effectiveFitMode(job.Config.FitMode)),
		MarkerSizes:      []int64{markerSize},
		MaskFiles:        maskFiles,
		CacheHit:         cacheHit,
	}
	for _, plan := range plans {
		if plan == nil {
			continue
		}
		if meta.VideoWidth == 0 {
			meta.VideoWidth = plan.OutWidth
			meta.VideoHeight = plan.OutHeight
			meta.VideoAspectRatio = fmt.Sprintf("%.3f", float64(plan.OutWidth)/float64(plan.OutHeight))
		}
	}
	return meta
}

func effectiveFitMode(m schema.FitMode) schema.FitMode {
	if m == "" {
		return schema.FitContain
	}
	return m
}

// stageOf maps an error kind back to the stage that produced it.
func stageOf(err error) schema.CompileStage {
	switch arerr.KindOf(err) {
	case arerr.ImageDecode, arerr.MaskApply:
		return schema.StagePreparing
	case arerr.InsufficientFeatures, arerr.CompilerCrash:
		return schema.StageCompiling
	case arerr.VideoProbe, arerr.VideoTranscode:
		return schema.StageAligning
	case arerr.ViewerConfig:
		return schema.StageRendering
	case arerr.QrEncode:
		return schema.StageQrGenerating
	default:
		return schema.StageFailed
	}
}

func writeFileTracked(att *attempt, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	att.wrote(path)
	return nil
}
