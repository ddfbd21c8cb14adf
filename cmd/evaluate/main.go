// cmd/evaluate/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"grounded-qa/internal/common/config"
	"grounded-qa/internal/common/llm"
	"grounded-qa/internal/common/logger"
	"grounded-qa/internal/common/observability"
	"grounded-qa/internal/dataset"
	"grounded-qa/internal/evaluation"
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

	zapLog.Info("Starting evaluation run...",
		zap.String("questions", cfg.Evaluation.QuestionsPath),
		zap.Int("consistencyRuns", cfg.Evaluation.ConsistencyRuns),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ds, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		zapLog.Fatal("dataset load failed", zap.Error(err))
	}
	zapLog.Info("Dataset loaded", zap.Int("records", len(ds.Records)))

	client := llm.NewOpenAIClient(&llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     config.GetDuration(cfg.LLM.Timeout),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, log)

	parser := parsequestion.NewHandler(parsequestion.LoadConfig(), client, log)
	retriever := retrieveplans.NewHandler(retrieveplans.LoadConfig(), log)
	generator := generateanswer.NewHandler(generateanswer.LoadConfig(), client, log)
	pipe := pipeline.New(parser, retriever, generator, ds, obs, log)

	runner := evaluation.NewRunner(cfg.Evaluation, parser, retriever, pipe, ds, log)

	summary, err := runner.Run(context.Background())
	if err != nil {
		zapLog.Fatal("evaluation run failed", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println("=== FINAL SUMMARY ===")
	fmt.Println(string(pretty))
	fmt.Printf("\nSaved: %s\nSaved: %s\n", cfg.Evaluation.ResultsPath, cfg.Evaluation.SummaryPath)
}
