package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-review/internal/config"
	"github.com/kozaktomas/face-review/internal/faces"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the face HNSW index from PostgreSQL",
	Long: `Rebuild the face HNSW index from the embeddings stored in PostgreSQL.

Use this after bulk changes to the embedding table, or when the persisted
index file is stale or corrupted. With HNSW_INDEX_PATH set, the rebuilt
index is written there so the next serve start loads it instead of
rebuilding.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := faces.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	repo := faces.NewRepository(pool, embeddingModel)

	total, err := repo.CountPrimary(ctx)
	if err != nil {
		return fmt.Errorf("failed to count embeddings: %w", err)
	}
	fmt.Printf("Found %d primary embeddings to index\n\n", total)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Indexing faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	started := time.Now()
	embeddings := make(map[string][]float32, total)
	err = repo.ListPrimary(ctx, func(userID string, embedding []float32) error {
		embeddings[userID] = embedding
		_ = bar.Add(1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list embeddings: %w", err)
	}

	index := faces.NewIndex()
	index.Build(embeddings)

	if cfg.Database.IndexPath != "" {
		index.SetPath(cfg.Database.IndexPath)
		if err := index.Save(); err != nil {
			return fmt.Errorf("failed to persist index: %w", err)
		}
		fmt.Printf("\nIndex with %d faces written to %s in %s\n",
			index.Len(), cfg.Database.IndexPath, time.Since(started).Round(time.Millisecond))
	} else {
		fmt.Printf("\nIndex with %d faces built in %s (set HNSW_INDEX_PATH to persist it)\n",
			index.Len(), time.Since(started).Round(time.Millisecond))
	}

	return nil
}
