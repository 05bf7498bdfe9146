// Package cmd provides the askweb CLI commands.
//
// Commands:
//   - ask: answer one question with fresh web research
//   - new: start a new research session
//   - end: archive the current session
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jiho-dev/askweb/internal/log"
)

// Execute is the main entry point for the askweb CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "ask":
		return runAsk(logger, os.Args[2:])
	case "new":
		return runNew(logger)
	case "end":
		return runEnd(logger)
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
	fmt.Println("askweb - answer questions with live web research")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  askweb ask \"question\"   Research and answer a question")
	fmt.Println("  askweb new              Start a new session (archives the current one)")
	fmt.Println("  askweb end              Archive the current session")
	fmt.Println("  askweb --version        Show version information")
	fmt.Println("  askweb --help           Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY          Required: Gemini API key")
	fmt.Println("  TAVILY_API_KEY          Tavily key (search_provider=tavily)")
	fmt.Println("  GOOGLE_API_KEY          Google key (search_provider=google)")
	fmt.Println("  GOOGLE_CSE_ID           Google custom search engine ID")
	fmt.Println("  DEBUG                   Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration is read from ./config.yaml or ~/.askweb/config.yaml.")
}
