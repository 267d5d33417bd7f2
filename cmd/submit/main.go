// cmd/submit enqueues an AR compilation job onto the worker queue. Intended
// for re-running failed projects and for smoke-testing a deployed worker.
//
// Usage:
//   ./submit -project 3f2a... -photo /data/uploads/photo.jpg
//   ./submit -project 3f2a... -photo a.jpg -video a.mp4 -shape circle
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/photobooksgallery/ar-compiler/internal/worker"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

type stringList []string

func (s *stringList) String() string     { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	_ = godotenv.Load()

	var photos, videos, masks stringList
	project := flag.String("project", "", "Project id (required)")
	user := flag.String("user", "", "User id")
	flag.Var(&photos, "photo", "Photo path (repeat for multi-target, required)")
	flag.Var(&videos, "video", "Video path, positional with -photo")
	flag.Var(&masks, "mask", "Custom mask path, positional with -photo")
	shape := flag.String("shape", "", "Mask shape: circle, oval, square, rect, custom")
	storageDir := flag.String("storage-dir", "", "Project storage directory (worker provisions one when empty)")
	redisAddr := flag.String("redis", getenv("REDIS_ADDR", "127.0.0.1:6379"), "Redis address")

	flag.Parse()

	if *project == "" || len(photos) == 0 {
		fmt.Println("Error: -project and at least one -photo are required")
		flag.Usage()
		os.Exit(1)
	}

	job := &schema.CompilationJob{
		ProjectID:  *project,
		UserID:     *user,
		PhotoPaths: photos,
		VideoPaths: videos,
		MaskPaths:  masks,
		ShapeType:  schema.ShapeType(*shape),
		StorageDir: *storageDir,
	}

	task, opts, err := worker.NewCompileTask(job)
	if err != nil {
		fmt.Printf("Error: build task: %v\n", err)
		os.Exit(1)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: *redisAddr})
	defer client.Close()

	info, err := client.Enqueue(task, opts...)
	if err != nil {
		fmt.Printf("Error: enqueue: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Enqueued %s for project %s (task %s, queue %s)\n", task.Type(), *project, info.ID, info.Queue)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
