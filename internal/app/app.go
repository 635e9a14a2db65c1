package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "serve":
		return runServe(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "enqueue":
		return runEnqueue(args[1:])
	case "translate":
		return runTranslate(args[1:])
	case "keys":
		return runKeys(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "voiceqc CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  voiceqc <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health      Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  serve       Start the API server with the background translation queue")
	fmt.Fprintln(os.Stderr, "  ingest      Import one dialog JSON document")
	fmt.Fprintln(os.Stderr, "  enqueue     Enqueue a translation job on a running server")
	fmt.Fprintln(os.Stderr, "  translate   Run one translation job synchronously, without the queue")
	fmt.Fprintln(os.Stderr, "  keys        Manage provider credentials (add, list, remove, reactivate)")
	fmt.Fprintln(os.Stderr, "  hash-token  Produce a bcrypt hash for VQ_ADMIN_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"voiceqc <command> -h\" for command-specific flags.")
}
