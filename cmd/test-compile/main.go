// cmd/test-compile runs one AR compilation locally, without Redis, NATS, or
// the storefront backend. Useful for checking a photo's marker quality before
// wiring a project through the queue.
//
// Usage:
//   ./test-compile -photo photo.jpg -out ./out
//   ./test-compile -photo photo.jpg -video clip.mp4 -shape circle -out ./out
//   ./test-compile -photo a.jpg -photo b.jpg -out ./out  # multi-target
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/photobooksgallery/ar-compiler/internal/marker"
	"github.com/photobooksgallery/ar-compiler/internal/markercache"
	"github.com/photobooksgallery/ar-compiler/internal/pipeline"
	"github.com/photobooksgallery/ar-compiler/internal/storage"
	"github.com/photobooksgallery/ar-compiler/internal/video"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

type stringList []string

func (s *stringList) String() string     { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	var photos, videos, masks stringList
	flag.Var(&photos, "photo", "Photo path (repeat for multi-target, required)")
	flag.Var(&videos, "video", "Video path, positional with -photo (optional)")
	flag.Var(&masks, "mask", "Custom mask path, positional with -photo (optional)")
	out := flag.String("out", "./out", "Output directory")
	shape := flag.String("shape", "", "Mask shape: circle, oval, square, rect, custom")
	noBorder := flag.Bool("no-border", false, "Skip the printable border")
	baseURL := flag.String("base-url", "http://127.0.0.1:5000", "Public base URL for the view link")
	timeout := flag.Int("timeout", 300, "Compilation timeout in seconds")

	flag.Parse()

	if len(photos) == 0 {
		fmt.Println("Error: at least one -photo is required")
		flag.Usage()
		os.Exit(1)
	}
	for _, p := range photos {
		if _, err := os.Stat(p); err != nil {
			fmt.Printf("Error: photo not found: %s\n", p)
			os.Exit(1)
		}
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Printf("Error: create output dir: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cache, err := markercache.New(os.TempDir() + "/ar-marker-cache")
	if err != nil {
		fmt.Printf("Error: open cache: %v\n", err)
		os.Exit(1)
	}

	pipe := pipeline.New(
		marker.NewCompiler(marker.DefaultParams()),
		cache,
		video.NewAligner("", ""),
		storage.NewManager(*out, "/objects/ar-storage"),
		pipeline.Options{
			PublicBaseURL: *baseURL,
			EnhanceBorder: !*noBorder,
		},
		logger,
	)

	job := &schema.CompilationJob{
		ProjectID:  "test-compile",
		PhotoPaths: photos,
		VideoPaths: videos,
		MaskPaths:  masks,
		ShapeType:  schema.ShapeType(*shape),
		StorageDir: *out,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	fmt.Printf("Compiling %d target(s)...\n", len(photos))
	res := pipe.Run(ctx, job, func(stage schema.CompileStage) {
		fmt.Printf("  stage: %s\n", stage)
	})

	if !res.Success {
		fmt.Printf("\n❌ Compilation failed at %s (%s): %s\n", res.FailedStep, res.FailureType, res.Error)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Compiled in %dms\n", res.CompilationTimeMs)
	fmt.Printf("   marker:  %s/%s (%d bytes)\n", *out, storage.MarkerFile, res.Metadata.MarkerSizes[0])
	fmt.Printf("   viewer:  %s/%s\n", *out, storage.ViewerFile)
	fmt.Printf("   qr:      %s/%s\n", *out, storage.QRFile)
	fmt.Printf("   view:    %s\n", res.ViewURL)
	if res.Metadata.CacheHit {
		fmt.Println("   (marker served from cache)")
	}
}
