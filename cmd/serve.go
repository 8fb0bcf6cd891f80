package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-review/internal/auth"
	"github.com/kozaktomas/face-review/internal/config"
	"github.com/kozaktomas/face-review/internal/faces"
	"github.com/kozaktomas/face-review/internal/photos"
	"github.com/kozaktomas/face-review/internal/review"
	"github.com/kozaktomas/face-review/internal/store"
	"github.com/kozaktomas/face-review/internal/web"
	"github.com/kozaktomas/face-review/internal/webhook"
)

// embeddingModel names the model the embedding server runs, recorded with
// every stored vector.
const embeddingModel = "facenet-512"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review API server",
	Long: `Start the Face Review API server.
The server authenticates bearer tokens, serves the admin review queue and
the phone-number migration endpoint, and delivers account webhooks.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// initFaceHNSW builds or loads the in-memory index for fast similarity search.
func initFaceHNSW(ctx context.Context, repo *faces.Repository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading face HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for face matching...\n")
	}
	if err := repo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build face HNSW index: %v\n", err)
		fmt.Printf("Similarity search will use PostgreSQL queries (slower)\n")
	} else {
		fmt.Printf("Face HNSW index ready with %d embeddings\n", repo.HNSWCount())
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("REDIS_ADDR environment variable is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	fmt.Printf("Connecting to Redis...\n")
	accountStore, err := store.NewRedisStore(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer accountStore.Close()

	fmt.Printf("Connecting to photo object storage...\n")
	photoStore, err := photos.NewS3Store(ctx, &cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to set up photo storage: %w", err)
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := faces.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx, cfg.Embedding.Dim); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	embeddingRepo := faces.NewRepository(pool, embeddingModel)
	initFaceHNSW(ctx, embeddingRepo, cfg.Database.IndexPath)

	extractor := faces.NewEmbeddingClient(&cfg.Embedding, cfg.Review.PhotoMaxSize)
	verifier := auth.NewVerifier(cfg)
	notifier := webhook.NewNotifier(cfg)
	service := review.NewService(cfg, accountStore, photoStore, embeddingRepo, extractor, notifier)

	server := web.NewServer(cfg, verifier, service, notifier)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Review API on http://%s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
