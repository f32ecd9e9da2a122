// test-matcher runs the matcher chain against a text file so the scoring
// can be inspected without a running server or a real invoice PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/anyai-fi/invoicerobot/internal/matcher"
	"github.com/anyai-fi/invoicerobot/internal/models"
	"github.com/anyai-fi/invoicerobot/internal/repository"
	"github.com/anyai-fi/invoicerobot/pkg/database"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	textFile := flag.String("text", "", "Path to a file with extracted invoice text")
	dbPath := flag.String("db", "data/invoicerobot.db", "SQLite database with the project catalog")
	useAI := flag.Bool("ai", false, "Also run the AI matcher (needs OPENAI_API_KEY)")
	model := flag.String("model", "gpt-4o", "OpenAI model for the AI matcher")
	timeout := flag.Duration("timeout", 60*time.Second, "Matching timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	gotenv.Load()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *textFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: test-matcher --text invoice.txt [--db data/invoicerobot.db] [--ai]\n")
		os.Exit(1)
	}

	text, err := os.ReadFile(*textFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read text file: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(database.Config{Path: *dbPath, MaxOpenConns: 1, MaxIdleConns: 1}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	projects, err := repository.NewProjectRepository(db.DB, logger).GetActive()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load projects: %v\n", err)
		os.Exit(1)
	}
	if len(projects) == 0 {
		fmt.Fprintf(os.Stderr, "No active projects in %s, sync the catalog first\n", *dbPath)
		os.Exit(1)
	}

	matchers := []matcher.ProjectMatcher{matcher.NewHeuristicMatcher(logger)}
	if *useAI {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			fmt.Fprintf(os.Stderr, "ERROR: --ai requires OPENAI_API_KEY\n")
			os.Exit(1)
		}
		matchers = append(matchers, matcher.NewOpenAIMatcher(apiKey, *model, 0.1, logger))
	}

	invoice := &models.Invoice{InvoiceNumber: "TEST", OcrText: string(text)}

	fmt.Println("=== Matcher Test ===")
	fmt.Printf("Projects: %d\n", len(projects))
	fmt.Printf("Text length: %d chars\n\n", len(text))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	for _, m := range matchers {
		result, err := m.Match(ctx, invoice, projects)
		if err != nil {
			fmt.Printf("[%s] error: %v\n", m.Name(), err)
			continue
		}
		if result == nil {
			fmt.Printf("[%s] no match\n", m.Name())
			continue
		}
		fmt.Printf("[%s] project_key=%d confidence=%.2f\n", m.Name(), result.ProjectKey, result.Confidence)
		fmt.Printf("  reasoning: %s\n", result.Reasoning)
	}
}
