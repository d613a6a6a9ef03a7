package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ragchat/internal/completion"
	"ragchat/internal/config"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
	"ragchat/internal/prompt"
	"ragchat/internal/retrieval"
	"ragchat/internal/sanitize"
	"ragchat/internal/service"
)

// app holds the assembled pipeline.
type app struct {
	cfg      *config.AppConfig
	log      logger.Logger
	health   *completion.HealthChecker
	chat     *service.ChatServiceImpl
	registry *prometheus.Registry
	recorder metrics.Recorder
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

// newApp assembles components via interfaces.
func newApp(cfg *config.AppConfig, log logger.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	retriever, err := retrieval.NewClient(retrieval.Config{
		ProjectPath: cfg.Retrieval.ProjectPath,
		Interpreter: cfg.Retrieval.Interpreter,
		Script:      cfg.Retrieval.Script,
		Command:     cfg.Retrieval.Command,
		APIKeyEnv:   cfg.Retrieval.APIKeyEnv,
		APIKey:      cfg.Retrieval.APIKey,
		Timeout:     time.Duration(cfg.Retrieval.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval client init failed: %w", err)
	}
	log.Info("Resolved retrieval project path", "path", cfg.Retrieval.ProjectPath)

	health := completion.NewHealthChecker(
		cfg.LLM.URL, cfg.LLM.Port, cfg.LLM.HealthPath,
		time.Duration(cfg.LLM.HealthTimeoutSecs)*time.Second,
	)
	completer := completion.NewClient(completion.Config{
		BaseURL:        cfg.LLM.URL,
		Port:           cfg.LLM.Port,
		CompletionPath: cfg.LLM.CompletionPath,
		RequestTimeout: time.Duration(cfg.LLM.RequestTimeoutSecs) * time.Second,
		MaxRetries:     cfg.LLM.Retry.MaxRetries,
		RetryDelay:     time.Duration(cfg.LLM.Retry.DelayMillis) * time.Millisecond,
		Classifier:     completion.ClassifierFor(cfg.LLM.Retry.Mode),
	}, rec)

	prompts := prompt.NewBuilder(prompt.Config{
		MaxSections: cfg.Prompt.MaxSections,
		MaxChars:    cfg.Prompt.MaxChars,
	}, log)
	san := sanitize.New(sanitize.Config{
		MaxPoints:        cfg.Sanitizer.MaxPoints,
		MinBullets:       cfg.Sanitizer.MinBullets,
		BlockedPhrases:   cfg.Sanitizer.BlockedPhrases,
		EmptyMessage:     cfg.Sanitizer.EmptyMessage,
		BlockedMessage:   cfg.Sanitizer.BlockedMessage,
		FallbackPreamble: cfg.Sanitizer.FallbackPreamble,
	}, log, rec)

	return &app{
		cfg:      cfg,
		log:      log,
		health:   health,
		chat:     service.NewChatService(health, retriever, prompts, completer, san, rec),
		registry: reg,
		recorder: rec,
	}, nil
}
