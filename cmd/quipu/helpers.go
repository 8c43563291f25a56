package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/extraction"
	"github.com/quipufin/quipu/internal/pipeline"
	"github.com/quipufin/quipu/internal/service"
	"github.com/quipufin/quipu/internal/storage"
)

func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "quipu", "quipu.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if ttl := viper.GetDuration("confirmation.ttl"); ttl > 0 {
		cfg.ConfirmationTTL = ttl
	}
	if v := viper.GetFloat64("policy.auto_enable_accuracy"); v > 0 {
		cfg.AutoEnableAccuracy = v
	}
	if v := viper.GetInt("policy.auto_enable_min_count"); v > 0 {
		cfg.AutoEnableMinCount = v
	}
	if v := viper.GetFloat64("policy.auto_disable_accuracy"); v > 0 {
		cfg.AutoDisableAccuracy = v
	}
	if v := viper.GetDuration("policy.auto_disable_cooldown"); v > 0 {
		cfg.AutoDisableCooldown = v
	}
	return cfg
}

func newExtractor() (*extraction.Extractor, error) {
	cfg := extraction.Config{
		Provider:    viper.GetString("extraction.provider"),
		APIKey:      viper.GetString("extraction.api_key"),
		Model:       viper.GetString("extraction.model"),
		MaxRetries:  viper.GetInt("extraction.max_retries"),
		RetryDelay:  viper.GetDuration("extraction.retry_delay"),
		RateLimit:   viper.GetInt("extraction.rate_limit"),
		Temperature: viper.GetFloat64("extraction.temperature"),
		MaxTokens:   viper.GetInt("extraction.max_tokens"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return extraction.NewExtractor(cfg, slog.Default())
}

// newIngestPipeline wires the full pipeline including the extraction adapter.
func newIngestPipeline(store service.Storage) (*pipeline.Pipeline, func(), error) {
	extractor, err := newExtractor()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	return pipeline.NewWithConfig(store, extractor, pipelineConfig()), extractor.Close, nil
}

// newResolutionPipeline wires the pipeline without an extractor; resolution
// and sweeping never call it.
func newResolutionPipeline(store service.Storage) *pipeline.Pipeline {
	return pipeline.NewWithConfig(store, nil, pipelineConfig())
}

// friendlyError translates pipeline sentinels into messages fit to relay back
// to the sender.
func friendlyError(err error) error {
	switch {
	case errors.Is(err, common.ErrNotRegistered):
		return common.NewUserError("This number is not registered yet", err)
	case errors.Is(err, common.ErrNothingToConfirm):
		return common.NewUserError("There is nothing waiting for confirmation", err)
	case errors.Is(err, common.ErrAlreadyResolved):
		return common.NewUserError("That record was already resolved", err)
	case errors.Is(err, common.ErrExtractionFailed):
		return common.NewUserError("Could not read that message, please try again", err)
	default:
		return err
	}
}
