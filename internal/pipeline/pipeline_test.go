package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/photobooksgallery/ar-compiler/internal/marker"
	"github.com/photobooksgallery/ar-compiler/internal/markercache"
	"github.com/photobooksgallery/ar-compiler/internal/storage"
	"github.com/photobooksgallery/ar-compiler/internal/video"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

// fakeAligner stands in for ffmpeg: it writes a placeholder output file and
// returns the pure plan.
type fakeAligner struct {
	calls int
	fail  bool
}

func (f *fakeAligner) Align(ctx context.Context, input, output string, targetW, targetH int) (video.Plan, error) {
	f.calls++
	if f.fail {
		_, err := video.NewAligner("", "definitely-missing-ffprobe").Probe(ctx, input)
		return video.Plan{}, err
	}
	if err := os.WriteFile(output, []byte("fake mp4"), 0o644); err != nil {
		return video.Plan{}, err
	}
	return video.ComputePlan(1920, 1080, targetW, targetH), nil
}

type env struct {
	pipe   *Pipeline
	store  *storage.Manager
	layout storage.Layout
	align  *fakeAligner
}

func newEnv(t *testing.T) *env {
	t.Helper()

	root := t.TempDir()
	store := storage.NewManager(root, "/objects/ar-storage")
	layout, err := store.EnsureProjectDir("p1")
	if err != nil {
		t.Fatalf("provision storage: %v", err)
	}

	cache, err := markercache.New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}

	align := &fakeAligner{}
	pipe := New(
		marker.NewCompiler(marker.DefaultParams()),
		cache, align, store,
		Options{PublicBaseURL: "https://pb.example", EnhanceBorder: true},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return &env{pipe: pipe, store: store, layout: layout, align: align}
}

func TestRunPhotoOnlySuccess(t *testing.T) {
	e := newEnv(t)
	photo := writeDottedPhoto(t, 256, 256)

	var stages []schema.CompileStage
	job := &schema.CompilationJob{ProjectID: "p1", PhotoPath: photo, StorageDir: e.layout.Dir}
	res := e.pipe.Run(context.Background(), job, func(s schema.CompileStage) {
		stages = append(stages, s)
	})

	if !res.Success {
		t.Fatalf("compilation failed: %s (step %s)", res.Error, res.FailedStep)
	}

	for _, file := range []string{"targets.mind", "index.html", "qr-code.png", "enhanced-photo-0.jpg", "photo-0.png"} {
		if _, err := os.Stat(filepath.Join(e.layout.Dir, file)); err != nil {
			t.Fatalf("artifact %s missing: %v", file, err)
		}
	}

	if res.ViewURL != "https://pb.example/ar/view/p1" {
		t.Fatalf("unexpected view url: %s", res.ViewURL)
	}
	if res.MarkerMindURL != "/objects/ar-storage/p1/targets.mind" {
		t.Fatalf("unexpected marker url: %s", res.MarkerMindURL)
	}
	if res.Metadata == nil || res.Metadata.MarkersCount != 1 || res.Metadata.MultiTarget {
		t.Fatalf("unexpected metadata: %+v", res.Metadata)
	}
	if res.Metadata.CacheHit {
		t.Fatal("first compile should not hit the cache")
	}
	if res.CompilationTimeMs < 0 {
		t.Fatalf("bad timing: %d", res.CompilationTimeMs)
	}

	want := []schema.CompileStage{
		schema.StageReceived, schema.StagePreparing, schema.StageCompiling,
		schema.StageAligning, schema.StageRendering, schema.StageQrGenerating,
		schema.StageSucceeded,
	}
	if len(stages) != len(want) {
		t.Fatalf("stages %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stage %d: got %s want %s", i, stages[i], want[i])
		}
	}
	if e.align.calls != 0 {
		t.Fatal("photo-only job should not touch the aligner")
	}
}

func TestRunSecondCompileHitsCache(t *testing.T) {
	e := newEnv(t)
	photo := writeDottedPhoto(t, 256, 256)

	first := e.pipe.Run(context.Background(), &schema.CompilationJob{
		ProjectID: "p1", PhotoPath: photo, StorageDir: e.layout.Dir,
	}, nil)
	if !first.Success {
		t.Fatalf("first compile failed: %s", first.Error)
	}

	layout2, err := e.store.EnsureProjectDir("p2")
	if err != nil {
		t.Fatalf("provision storage: %v", err)
	}
	second := e.pipe.Run(context.Background(), &schema.CompilationJob{
		ProjectID: "p2", PhotoPath: photo, StorageDir: layout2.Dir,
	}, nil)
	if !second.Success {
		t.Fatalf("second compile failed: %s", second.Error)
	}
	if !second.Metadata.CacheHit {
		t.Fatal("identical photo should hit the marker cache")
	}

	a, _ := os.ReadFile(e.layout.MarkerPath())
	b, _ := os.ReadFile(layout2.MarkerPath())
	if string(a) != string(b) {
		t.Fatal("cached marker differs from compiled marker")
	}
}

func TestRunFailureRemovesArtifacts(t *testing.T) {
	e := newEnv(t)
	// Featureless photo: preparation succeeds, marker compilation fails.
	photo := writeFlatPhoto(t, 256, 256)

	var stages []schema.CompileStage
	res := e.pipe.Run(context.Background(), &schema.CompilationJob{
		ProjectID: "p1", PhotoPath: photo, StorageDir: e.layout.Dir,
	}, func(s schema.CompileStage) { stages = append(stages, s) })

	if res.Success {
		t.Fatal("expected failure for featureless photo")
	}
	if res.FailureType != schema.FailureTypePermanent {
		t.Fatalf("unexpected failure type: %s", res.FailureType)
	}
	if res.FailedStep != string(schema.StageCompiling) {
		t.Fatalf("unexpected failed step: %s", res.FailedStep)
	}
	if !strings.Contains(res.Error, "feature") {
		t.Fatalf("error should mention features: %s", res.Error)
	}

	entries, err := os.ReadDir(e.layout.Dir)
	if err != nil {
		t.Fatalf("read project dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failure left artifacts behind: %v", entries)
	}

	if stages[len(stages)-1] != schema.StageFailed {
		t.Fatalf("last stage %s, want failed", stages[len(stages)-1])
	}
}

func TestRunWithVideo(t *testing.T) {
	e := newEnv(t)
	photo := writeDottedPhoto(t, 256, 256)

	res := e.pipe.Run(context.Background(), &schema.CompilationJob{
		ProjectID:  "p1",
		PhotoPath:  photo,
		VideoPath:  "/uploads/clip.mp4",
		StorageDir: e.layout.Dir,
	}, nil)

	if !res.Success {
		t.Fatalf("compilation failed: %s (step %s)", res.Error, res.FailedStep)
	}
	if e.align.calls != 1 {
		t.Fatalf("aligner called %d times, want 1", e.align.calls)
	}
	if _, err := os.Stat(e.layout.VideoPath(0)); err != nil {
		t.Fatalf("aligned video missing: %v", err)
	}
	if res.Metadata.VideoWidth == 0 || res.Metadata.VideoHeight == 0 {
		t.Fatalf("video metadata missing: %+v", res.Metadata)
	}

	html, err := os.ReadFile(e.layout.ViewerPath())
	if err != nil {
		t.Fatalf("read viewer: %v", err)
	}
	if !strings.Contains(string(html), "video-0.mp4") {
		t.Fatal("viewer does not reference the aligned video")
	}
}

func TestRunVideoFailureShortCircuits(t *testing.T) {
	e := newEnv(t)
	e.align.fail = true
	photo := writeDottedPhoto(t, 256, 256)

	res := e.pipe.Run(context.Background(), &schema.CompilationJob{
		ProjectID:  "p1",
		PhotoPath:  photo,
		VideoPath:  "/uploads/clip.mp4",
		StorageDir: e.layout.Dir,
	}, nil)

	if res.Success {
		t.Fatal("expected failure from broken aligner")
	}
	if res.FailedStep != string(schema.StageAligning) {
		t.Fatalf("unexpected failed step: %s", res.FailedStep)
	}
	for _, file := range []string{"index.html", "qr-code.png"} {
		if _, err := os.Stat(filepath.Join(e.layout.Dir, file)); !os.IsNotExist(err) {
			t.Fatalf("later-stage artifact %s should not exist", file)
		}
	}
}

func TestRunNoPhotos(t *testing.T) {
	e := newEnv(t)

	res := e.pipe.Run(context.Background(), &schema.CompilationJob{
		ProjectID: "p1", StorageDir: e.layout.Dir,
	}, nil)

	if res.Success {
		t.Fatal("expected failure for empty job")
	}
	if !strings.Contains(res.Error, "no photos") {
		t.Fatalf("unexpected error: %s", res.Error)
	}
}

func TestRunMarkerCountMismatch(t *testing.T) {
	e := newEnv(t)
	photo := writeDottedPhoto(t, 256, 256)

	res := e.pipe.Run(context.Background(), &schema.CompilationJob{
		ProjectID:  "p1",
		PhotoPath:  photo,
		StorageDir: e.layout.Dir,
		Config:     schema.PlacementConfig{MarkerCount: 3},
	}, nil)

	if res.Success {
		t.Fatal("expected failure for marker count mismatch")
	}
	if res.FailureType != schema.FailureTypeValidation {
		t.Fatalf("unexpected failure type: %s", res.FailureType)
	}
}

func writeDottedPhoto(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 30, 30, 30, 255
	}
	state := uint32(9001)
	next := func(n int) int {
		state = state*1664525 + 1013904223
		return int(state>>16) % n
	}
	for gy := 24; gy < h-24; gy += 12 {
		for gx := 24; gx < w-24; gx += 12 {
			cx, cy := gx+next(5)-2, gy+next(5)-2
			for y := cy - 2; y <= cy+2; y++ {
				for x := cx - 2; x <= cx+2; x++ {
					if dx, dy := x-cx, y-cy; dx*dx+dy*dy <= 4 {
						img.SetNRGBA(x, y, color.NRGBA{230, 230, 230, 255})
					}
				}
			}
		}
	}
	return writeTempPNG(t, img)
}

func writeFlatPhoto(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	return writeTempPNG(t, img)
}

func writeTempPNG(t *testing.T, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create photo: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		t.Fatalf("encode photo: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close photo: %v", err)
	}
	return path
}
