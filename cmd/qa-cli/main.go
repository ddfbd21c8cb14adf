// cmd/qa-cli/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"grounded-qa/internal/common/config"
	"grounded-qa/internal/common/llm"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/common/observability"
	"grounded-qa/internal/dataset"
	"grounded-qa/internal/pipeline"
	generateanswer "grounded-qa/internal/stages/generate-answer"
	parsequestion "grounded-qa/internal/stages/parse-question"
	retrieveplans "grounded-qa/internal/stages/retrieve-plans"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting QA CLI...",
		zap.String("model", cfg.LLM.Model),
		zap.String("dataset", cfg.Dataset.Path),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				zapLog.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		zapLog.Info("Metrics endpoint listening", zap.String("address", cfg.Metrics.Address))
	}

	ds, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		zapLog.Fatal("dataset load failed", zap.Error(err))
	}
	zapLog.Info("Dataset loaded",
		zap.Int("records", len(ds.Records)),
		zap.Strings("platforms", ds.Platforms()),
	)

	client := llm.NewOpenAIClient(&llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     config.GetDuration(cfg.LLM.Timeout),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, log)

	pipe := pipeline.New(
		parsequestion.NewHandler(parsequestion.LoadConfig(), client, log),
		retrieveplans.NewHandler(retrieveplans.LoadConfig(), log),
		generateanswer.NewHandler(generateanswer.LoadConfig(), client, log),
		ds,
		obs,
		log,
	)

	runInteractive(context.Background(), pipe)
}

// runInteractive reads questions from stdin and prints both answers per
// question until EOF or an "exit" line.
func runInteractive(ctx context.Context, pipe *pipeline.Pipeline) {
	fmt.Println("=== Grounded QA System (LLM-only vs LLM+RAG) ===")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Enter your question (or 'exit'): ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			return
		}

		fmt.Println()
		fmt.Println("[LLM-only answer]")
		if direct, err := pipe.AnswerDirect(ctx, question); err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println(direct.Answer)
		}

		fmt.Println()
		fmt.Println("[LLM+RAG answer]")
		grounded, err := pipe.AnswerGrounded(ctx, question)
		if err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			printGroundedRound(grounded)
		}

		fmt.Println()
		fmt.Println(strings.Repeat("=", 60))
		fmt.Println()
	}
}

// printGroundedRound shows the intermediate artifacts before the answer so
// the two modes can be compared claim by claim.
func printGroundedRound(result *pipeline.RoundResult) {
	if result.Parsed != nil {
		fmt.Printf("parsed: platform=%q intent=%q", result.Parsed.Platform, result.Parsed.Intent)
		if result.Parsed.Budget != nil {
			fmt.Printf(" budget=[%.2f, %.2f]", result.Parsed.Budget.Min, result.Parsed.Budget.Max)
		}
		if len(result.Parsed.RequiredFeatures) > 0 {
			fmt.Printf(" features=%v", result.Parsed.RequiredFeatures)
		}
		fmt.Println()
	}
	if result.Retrieval != nil {
		fmt.Printf("retrieved: %d record(s)\n", len(result.Retrieval.Records))
		for _, r := range result.Retrieval.Records {
			fmt.Printf("  - %s %s: $%.2f %s, %.0f GB\n", r.Platform, r.PlanName, r.Price, r.BillingPeriod, r.StorageGB)
		}
	}
	fmt.Println(result.Answer)
}
