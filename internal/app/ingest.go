package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"voiceqc.dev/voiceqc/internal/cli"
	"voiceqc.dev/voiceqc/internal/config"
	"voiceqc.dev/voiceqc/internal/db"
	"voiceqc.dev/voiceqc/internal/langdetect"
	"voiceqc.dev/voiceqc/internal/logging"
	dialogschema "voiceqc.dev/voiceqc/internal/schema"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	payload := fs.String("payload", "", "Dialog payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	dialog, err := dialogschema.ValidateDialogPayload(payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	sourceLang := ""
	if dialog.SourceLang != nil {
		sourceLang = strings.ToLower(strings.TrimSpace(*dialog.SourceLang))
	}
	detected := false
	if sourceLang == "" {
		sourceLang = langdetect.DetectISO6391(dialog.Transcript)
		detected = true
	}

	segments := make([]db.InsertSegmentParams, 0, len(dialog.Segments))
	for _, segment := range dialog.Segments {
		segments = append(segments, db.InsertSegmentParams{
			Speaker: strings.TrimSpace(segment.Speaker),
			Text:    segment.Text,
			StartMS: segment.StartMS,
			EndMS:   segment.EndMS,
		})
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

	dialogUUID := uuid.NewString()
	if err := pool.InsertDialog(ctx, db.InsertDialogParams{
		DialogUUID: dialogUUID,
		Title:      dialog.Title,
		SourceLang: sourceLang,
		Transcript: dialog.Transcript,
		Segments:   segments,
	}); err != nil {
		logger.Error().Err(err).Msg("dialog insert failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	logger.Info().
		Str("dialog_uuid", dialogUUID).
		Str("source_lang", sourceLang).
		Bool("lang_detected", detected).
		Int("segments", len(segments)).
		Msg("dialog ingested")
	fmt.Printf("dialog_uuid=%s source_lang=%s detected=%t segments=%d\n", dialogUUID, sourceLang, detected, len(segments))
	return 0
}

func loadJSONInput(inline, filePath, label string) (json.RawMessage, error) {
	if strings.TrimSpace(filePath) != "" {
		raw, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", label, err)
		}
		return json.RawMessage(raw), nil
	}
	if strings.TrimSpace(inline) == "" {
		return nil, fmt.Errorf("%s is required (use --%s or --%s-file)", label, label, label)
	}
	return json.RawMessage(inline), nil
}
