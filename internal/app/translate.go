package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"voiceqc.dev/voiceqc/internal/cli"
	"voiceqc.dev/voiceqc/internal/config"
	"voiceqc.dev/voiceqc/internal/db"
	"voiceqc.dev/voiceqc/internal/keypool"
	"voiceqc.dev/voiceqc/internal/logging"
	"voiceqc.dev/voiceqc/internal/progress"
	"voiceqc.dev/voiceqc/internal/queue"
	"voiceqc.dev/voiceqc/internal/translation"
)

// runTranslate executes one job synchronously, bypassing the queue.
// Intended for operator debugging of a single dialog.
func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	lang := fs.String("lang", "", "Target language (defaults to VQ_TARGET_LANG)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: voiceqc translate <dialog_uuid> [--lang en] [--env .env] [--timeout 5m]")
		return 2
	}

	dialogUUID := strings.TrimSpace(fs.Arg(0))
	if dialogUUID == "" {
		fmt.Fprintln(os.Stderr, "dialog_uuid must not be empty")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	targetLang := strings.ToLower(strings.TrimSpace(*lang))
	if targetLang == "" {
		targetLang = cfg.TargetLang
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	keys := keypool.New(pool, logger)
	if err := keys.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load provider credentials: %v\n", err)
		return 1
	}

	reporter := progress.NewReporter(logger)
	reporter.Subscribe(dialogUUID, func(event progress.Event) {
		fmt.Printf("stage=%s progress=%d message=%q\n", event.Stage, event.Progress, event.Message)
	})

	registry := translation.NewRegistryFromEnv()
	runner := queue.NewRunner(pool, registry.Chain(), keys, reporter, logger, queue.RunnerOptions{
		TargetLang: targetLang,
		ChunkSize:  cfg.ChunkSize,
		ChunkDelay: cfg.ChunkDelay(),
	})

	started := time.Now()
	runner.Run(ctx, dialogUUID)

	stored, err := pool.GetTranslation(ctx, dialogUUID, targetLang)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			fmt.Printf("translate dialog=%s lang=%s result=skipped elapsed=%s\n", dialogUUID, targetLang, time.Since(started).Round(time.Millisecond))
			return 0
		}
		fmt.Fprintf(os.Stderr, "Failed to load job outcome: %v\n", err)
		return 1
	}

	fmt.Printf(
		"translate dialog=%s lang=%s status=%s provider=%s segments=%d elapsed=%s\n",
		dialogUUID,
		targetLang,
		stored.Status,
		stored.ProviderName,
		len(stored.Segments),
		time.Since(started).Round(time.Millisecond),
	)
	if stored.Status == db.TranslationStatusFailed {
		if stored.ErrorMessage != nil {
			fmt.Fprintf(os.Stderr, "Job failed: %s\n", *stored.ErrorMessage)
		}
		return 1
	}
	return 0
}
