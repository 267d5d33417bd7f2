// cmd/arworker/main.go
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/photobooksgallery/ar-compiler/internal/bus"
	"github.com/photobooksgallery/ar-compiler/internal/marker"
	"github.com/photobooksgallery/ar-compiler/internal/markercache"
	"github.com/photobooksgallery/ar-compiler/internal/pipeline"
	"github.com/photobooksgallery/ar-compiler/internal/storage"
	"github.com/photobooksgallery/ar-compiler/internal/video"
	"github.com/photobooksgallery/ar-compiler/internal/webhook"
	"github.com/photobooksgallery/ar-compiler/internal/worker"
)

type config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	StorageRoot   string
	PublicPrefix  string
	CacheDir      string
	BackendURL    string
	WebhookSecret string
	PublicBaseURL string
	Concurrency   int
	MaxDimension  int
	EnhanceBorder bool
	FFmpegPath    string
	FFprobePath   string
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := LoadConfig()
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("ar worker starting",
		"redis_addr", cfg.RedisAddr, "nats_url", cfg.NATSURL,
		"storage_root", cfg.StorageRoot, "cache_dir", cfg.CacheDir,
		"concurrency", cfg.Concurrency, "max_dimension", cfg.MaxDimension,
		"border_enhancer", cfg.EnhanceBorder)

	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		fatal(logger, "ensure storage root", err, "storage_root", cfg.StorageRoot)
	}

	cache, err := markercache.New(cfg.CacheDir)
	if err != nil {
		fatal(logger, "open marker cache", err, "cache_dir", cfg.CacheDir)
	}

	var events *bus.Client
	if cfg.NATSURL != "" {
		events, err = bus.Connect(cfg.NATSURL)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
		defer events.Close()
	} else {
		logger.Warn("NATS_URL empty, lifecycle events disabled")
	}

	store := storage.NewManager(cfg.StorageRoot, cfg.PublicPrefix)
	notifier := webhook.NewClient(cfg.BackendURL, cfg.WebhookSecret, logger)
	aligner := video.NewAligner(cfg.FFmpegPath, cfg.FFprobePath)
	compiler := marker.NewCompiler(marker.DefaultParams())

	pipe := pipeline.New(compiler, cache, aligner, store, pipeline.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		MaxDimension:  cfg.MaxDimension,
		EnhanceBorder: cfg.EnhanceBorder,
	}, logger)

	w := worker.New(pipe, store, notifier, events, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				worker.QueueName: 10,
			},
			LogLevel: asynq.WarnLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeCompile, w.ProcessTask)

	if err := srv.Start(mux); err != nil {
		fatal(logger, "start queue server", err)
	}
	logger.Info("listening for compile tasks", "queue", worker.QueueName)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	srv.Shutdown()
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

func LoadConfig() (config, error) {
	cfg := config{
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		NATSURL:       getenv("NATS_URL", "nats://127.0.0.1:4222"),
		StorageRoot:   getenv("AR_STORAGE_PATH", "./data/ar-storage"),
		PublicPrefix:  getenv("AR_PUBLIC_PREFIX", "/objects/ar-storage"),
		CacheDir:      getenv("AR_CACHE_DIR", "./data/marker-cache"),
		BackendURL:    getenv("BACKEND_URL", "http://127.0.0.1:5000"),
		WebhookSecret: getenv("WEBHOOK_SECRET", ""),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://127.0.0.1:5000"),
		EnhanceBorder: getenvBool("AR_ENABLE_BORDER_ENHANCER", true),
		FFmpegPath:    getenv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:   getenv("FFPROBE_PATH", "ffprobe"),
	}

	db, err := parseNonNegativeInt(getenv("REDIS_DB", "0"), "REDIS_DB")
	if err != nil {
		return config{}, err
	}
	cfg.RedisDB = db

	concurrency, err := parsePositiveInt(getenv("AR_CONCURRENCY", "5"), "AR_CONCURRENCY")
	if err != nil {
		return config{}, err
	}
	cfg.Concurrency = concurrency

	maxDim, err := parsePositiveInt(getenv("AR_MAX_DIMENSION", "1920"), "AR_MAX_DIMENSION")
	if err != nil {
		return config{}, err
	}
	cfg.MaxDimension = maxDim

	return cfg, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parseNonNegativeInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %d)", name, v)
	}
	return v, nil
}

func getenvBool(key string, defaultValue bool) bool {
	val := getenv(key, "")
	if val == "" {
		return defaultValue
	}
	return val == "true"
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
