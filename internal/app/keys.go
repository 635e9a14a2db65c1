package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"voiceqc.dev/voiceqc/internal/cli"
	"voiceqc.dev/voiceqc/internal/config"
	"voiceqc.dev/voiceqc/internal/db"
	"voiceqc.dev/voiceqc/internal/keypool"
	"voiceqc.dev/voiceqc/internal/logging"
)

func runKeys(args []string) int {
	if len(args) == 0 {
		printKeysUsage()
		return 2
	}

	action := strings.ToLower(strings.TrimSpace(args[0]))
	switch action {
	case "add", "list", "remove", "reactivate":
	default:
		fmt.Fprintf(os.Stderr, "unknown keys action: %s\n\n", args[0])
		printKeysUsage()
		return 2
	}

	fs := flag.NewFlagSet("keys "+action, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Second, "Command timeout")
	label := fs.String("label", "", "Human-readable credential label (add only)")
	secret := fs.String("secret", "", "Provider API key value (add only)")

	if err := fs.Parse(args[1:]); err != nil {
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

	switch action {
	case "add":
		if strings.TrimSpace(*secret) == "" {
			fmt.Fprintln(os.Stderr, "--secret is required")
			return 2
		}
		credential, err := keys.Add(ctx, uuid.NewString(), strings.TrimSpace(*label), strings.TrimSpace(*secret))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Add credential failed: %v\n", err)
			return 1
		}
		fmt.Printf("credential_uuid=%s label=%q active=%t\n", credential.ID, credential.Label, credential.Active)
		return 0

	case "list":
		snapshot := keys.Snapshot()
		if len(snapshot) == 0 {
			fmt.Println("no credentials")
			return 0
		}
		headers := []string{"CREDENTIAL_UUID", "LABEL", "ACTIVE", "SUCCESS", "FAILURE", "CONSECUTIVE", "LAST_USED_AT"}
		rows := make([][]string, 0, len(snapshot))
		for _, item := range snapshot {
			rows = append(rows, []string{
				item.ID,
				item.Label,
				fmt.Sprintf("%t", item.Active),
				fmt.Sprintf("%d", item.SuccessCount),
				fmt.Sprintf("%d", item.FailureCount),
				fmt.Sprintf("%d", item.ConsecutiveFailures),
				formatTimestampPtr(item.LastUsedAt),
			})
		}
		if err := writeTable(headers, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Write table failed: %v\n", err)
			return 1
		}
		return 0

	case "remove":
		id, code := requireKeyArg(fs, "remove")
		if code != 0 {
			return code
		}
		if err := keys.Remove(ctx, id); err != nil {
			if errors.Is(err, keypool.ErrCredentialNotFound) {
				fmt.Fprintf(os.Stderr, "Credential not found: %s\n", id)
				return 1
			}
			fmt.Fprintf(os.Stderr, "Remove credential failed: %v\n", err)
			return 1
		}
		fmt.Printf("credential_uuid=%s removed=true\n", id)
		return 0

	default:
		id, code := requireKeyArg(fs, "reactivate")
		if code != 0 {
			return code
		}
		if err := keys.Reactivate(ctx, id); err != nil {
			if errors.Is(err, keypool.ErrCredentialNotFound) {
				fmt.Fprintf(os.Stderr, "Credential not found: %s\n", id)
				return 1
			}
			fmt.Fprintf(os.Stderr, "Reactivate credential failed: %v\n", err)
			return 1
		}
		fmt.Printf("credential_uuid=%s active=true\n", id)
		return 0
	}
}

func requireKeyArg(fs *flag.FlagSet, action string) (string, int) {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: voiceqc keys %s <credential_uuid>\n", action)
		return "", 2
	}
	id := strings.TrimSpace(fs.Arg(0))
	if id == "" {
		fmt.Fprintln(os.Stderr, "credential_uuid must not be empty")
		return "", 2
	}
	return id, 0
}

func formatTimestampPtr(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func printKeysUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  voiceqc keys add --secret <value> [--label name] [--env .env]")
	fmt.Fprintln(os.Stderr, "  voiceqc keys list [--env .env]")
	fmt.Fprintln(os.Stderr, "  voiceqc keys remove <credential_uuid> [--env .env]")
	fmt.Fprintln(os.Stderr, "  voiceqc keys reactivate <credential_uuid> [--env .env]")
}
