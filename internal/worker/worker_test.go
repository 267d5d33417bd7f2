package worker

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/photobooksgallery/ar-compiler/internal/marker"
	"github.com/photobooksgallery/ar-compiler/internal/markercache"
	"github.com/photobooksgallery/ar-compiler/internal/pipeline"
	"github.com/photobooksgallery/ar-compiler/internal/storage"
	"github.com/photobooksgallery/ar-compiler/internal/video"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

type recordingNotifier struct {
	completed []string
	failed    []string
	lastView  string
	lastError string
}

func (r *recordingNotifier) NotifyComplete(ctx context.Context, projectID, viewURL, qrCodeURL string) error {
	r.completed = append(r.completed, projectID)
	r.lastView = viewURL
	return nil
}

func (r *recordingNotifier) NotifyFailed(ctx context.Context, projectID, errorMessage string) error {
	r.failed = append(r.failed, projectID)
	r.lastError = errorMessage
	return nil
}

func newTestWorker(t *testing.T) (*Worker, *recordingNotifier, *storage.Manager) {
	t.Helper()

	store := storage.NewManager(t.TempDir(), "/objects/ar-storage")
	cache, err := markercache.New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipe := pipeline.New(
		marker.NewCompiler(marker.DefaultParams()),
		cache,
		video.NewAligner("", ""),
		store,
		pipeline.Options{PublicBaseURL: "https://pb.example"},
		logger,
	)

	rec := &recordingNotifier{}
	return New(pipe, store, rec, nil, logger), rec, store
}

func compileTask(t *testing.T, job *schema.CompilationJob) *asynq.Task {
	t.Helper()

	task, _, err := NewCompileTask(job)
	if err != nil {
		t.Fatalf("NewCompileTask returned error: %v", err)
	}
	return task
}

func TestNewCompileTaskRoundTrip(t *testing.T) {
	job := &schema.CompilationJob{ProjectID: "p1", PhotoPath: "/uploads/a.png"}

	task, opts, err := NewCompileTask(job)
	if err != nil {
		t.Fatalf("NewCompileTask returned error: %v", err)
	}
	if task.Type() != TaskTypeCompile {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	if len(opts) == 0 {
		t.Fatal("expected queue options")
	}

	var decoded schema.CompilationJob
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if decoded.ProjectID != "p1" || decoded.PhotoPath != "/uploads/a.png" {
		t.Fatalf("payload mangled: %+v", decoded)
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	w, rec, _ := newTestWorker(t)
	photo := writeDottedPhoto(t)

	err := w.ProcessTask(context.Background(), compileTask(t, &schema.CompilationJob{
		ProjectID: "p1",
		PhotoPath: photo,
	}))
	if err != nil {
		t.Fatalf("ProcessTask returned error: %v", err)
	}

	if len(rec.completed) != 1 || rec.completed[0] != "p1" {
		t.Fatalf("complete webhook calls: %v", rec.completed)
	}
	if len(rec.failed) != 0 {
		t.Fatalf("unexpected failure webhook calls: %v", rec.failed)
	}
	if rec.lastView != "https://pb.example/ar/view/p1" {
		t.Fatalf("unexpected view url: %s", rec.lastView)
	}
}

func TestProcessTaskProvisionsStorage(t *testing.T) {
	w, _, store := newTestWorker(t)
	photo := writeDottedPhoto(t)

	err := w.ProcessTask(context.Background(), compileTask(t, &schema.CompilationJob{
		ProjectID: "fresh",
		PhotoPath: photo,
	}))
	if err != nil {
		t.Fatalf("ProcessTask returned error: %v", err)
	}

	layout := store.ProjectDir("fresh")
	if _, err := os.Stat(layout.MarkerPath()); err != nil {
		t.Fatalf("marker not written to provisioned storage: %v", err)
	}
}

func TestProcessTaskPermanentFailureSkipsRetry(t *testing.T) {
	w, rec, _ := newTestWorker(t)
	photo := writeFlatPhoto(t)

	err := w.ProcessTask(context.Background(), compileTask(t, &schema.CompilationJob{
		ProjectID: "p1",
		PhotoPath: photo,
	}))
	if err == nil {
		t.Fatal("expected error for featureless photo")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("permanent failure should skip retry: %v", err)
	}

	if len(rec.failed) != 1 {
		t.Fatalf("failure webhook calls: %v", rec.failed)
	}
	if len(rec.completed) != 0 {
		t.Fatalf("unexpected complete webhook calls: %v", rec.completed)
	}
	if rec.lastError == "" {
		t.Fatal("failure webhook missing error message")
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	w, rec, _ := newTestWorker(t)

	err := w.ProcessTask(context.Background(), asynq.NewTask(TaskTypeCompile, []byte("not json")))
	if err == nil || !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload should skip retry: %v", err)
	}
	if len(rec.failed) != 0 {
		t.Fatal("undecodable payload has no project to notify about")
	}
}

func TestProcessTaskMissingProject(t *testing.T) {
	w, _, _ := newTestWorker(t)

	err := w.ProcessTask(context.Background(), compileTask(t, &schema.CompilationJob{
		PhotoPath: "/uploads/a.png",
	}))
	if err == nil || !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("missing project id should skip retry: %v", err)
	}
}

func TestProcessTaskMissingPhotos(t *testing.T) {
	w, _, _ := newTestWorker(t)

	err := w.ProcessTask(context.Background(), compileTask(t, &schema.CompilationJob{
		ProjectID: "p1",
	}))
	if err == nil || !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("photo-less job should skip retry: %v", err)
	}
}

func writeDottedPhoto(t *testing.T) string {
	t.Helper()

	const w, h = 256, 256
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 30, 30, 30, 255
	}
	state := uint32(777)
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
	return writePNG(t, img)
}

func writeFlatPhoto(t *testing.T) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	return writePNG(t, img)
}

func writePNG(t *testing.T, img image.Image) string {
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
