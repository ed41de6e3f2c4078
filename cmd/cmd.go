// Package cmd provides the CLI commands for Amparo.
//
// Commands:
//   - serve:  HTTP API server with SSE chat streaming
//   - ask:    one-shot question from the terminal
//   - ingest: index knowledge documents into the vector store
//   - report: print or export a daily-log report
//
// All long-running commands handle SIGINT/SIGTERM via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the Amparo CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ask":
		return runAsk()
	case "ingest":
		return runIngest()
	case "report":
		return runReport()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Amparo - caregiver-support assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  amparo serve [addr]           Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  amparo ask <question>         Ask a one-shot caregiving question")
	fmt.Println("  amparo ingest <path>          Index a document or directory into the knowledge base")
	fmt.Println("  amparo report [flags]         Print or export a daily-log report")
	fmt.Println("  amparo version                Show version information")
	fmt.Println("  amparo help                   Show this help")
	fmt.Println()
	fmt.Println("Report flags:")
	fmt.Println("  --patient NAME                Patient name (required)")
	fmt.Println("  --from / --to YYYY-MM-DD      Date range (default: last 30 days)")
	fmt.Println("  --export csv|json|xlsx        Write an export file instead of printing")
	fmt.Println("  --out FILE                    Export file path")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required for the default gemini provider")
	fmt.Println("  DATABASE_URL       Optional: overrides postgres_* configuration")
	fmt.Println("  DEBUG              Optional: enable debug logging")
}
