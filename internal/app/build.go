// Package app wires configuration into a running screening service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ent0n29/screener/internal/config"
	"github.com/ent0n29/screener/internal/export"
	"github.com/ent0n29/screener/internal/httpapi"
	"github.com/ent0n29/screener/internal/judge"
	"github.com/ent0n29/screener/internal/launch"
	"github.com/ent0n29/screener/internal/observability"
	"github.com/ent0n29/screener/internal/policy"
	"github.com/ent0n29/screener/internal/session"
	"github.com/ent0n29/screener/internal/transcript"
	"github.com/ent0n29/screener/internal/voice"
)

type VoiceInfo struct {
	Provider       string
	Detail         string
	DefaultVoiceID string
	DefaultModelID string
}

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Sessions  *session.Manager
	Launcher  *launch.Launcher
	Metrics   *observability.Metrics
	Voice     VoiceInfo
	JudgeMode string

	// Cleanup should be called on shutdown to release the transcript store.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	script, err := config.LoadScript(cfg.InterviewFile, cfg.FAQFile)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	j, judgeMode, err := judge.New(judge.Config{
		Mode:             cfg.JudgeMode,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		AnthropicModel:   cfg.AnthropicModel,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		HTTPURL:          cfg.JudgeHTTPURL,
		Timeout:          cfg.JudgeTimeout,
		MaxRetries:       cfg.JudgeMaxRetries,
		Observer:         metrics.ObserveJudgeCall,
	})
	if err != nil {
		return nil, fmt.Errorf("judge init failed: %w", err)
	}

	voiceSetup, err := resolveVoiceProviders(cfg)
	if err != nil {
		return nil, err
	}
	cfg.VoiceProvider = voiceSetup.resolvedProvider

	store, err := transcript.NewStore(ctx, transcript.StoreConfig{
		Mode:        cfg.TranscriptStore,
		CSVPath:     cfg.TranscriptCSVPath,
		SQLitePath:  cfg.TranscriptSQLitePath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}
	transcriptLog := transcript.NewLog(store, policy.Redactor{Enabled: cfg.RedactPII})

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s session.Session) {
		logger.Warn("interview expired after inactivity", "session_id", s.ID, "state", s.State)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
	})

	launcher := launch.New(launch.Deps{
		Sessions:        sessions,
		Judge:           j,
		Extractor:       j,
		Log:             transcriptLog,
		Writer:          export.NewFileWriter(cfg.OutputDir),
		Script:          script,
		Metrics:         metrics,
		FinalizeTimeout: cfg.FinalizeTimeout,
		Logger:          logger,
	})

	newPort := func(sessionID string) *voice.Port {
		return voice.NewPort(voiceSetup.sttProvider, voiceSetup.ttsProvider, voice.PortConfig{
			SessionID:     sessionID,
			VoiceID:       voiceSetup.defaultVoiceID,
			ModelID:       voiceSetup.defaultModelID,
			ListenTimeout: cfg.ListenTimeout,
			StopGrace:     cfg.StopGrace,
		}, logger.With("session_id", sessionID))
	}

	api := httpapi.New(httpapi.Deps{
		Config:   cfg,
		Sessions: sessions,
		Launcher: launcher,
		Metrics:  metrics,
		NewPort:  newPort,
		Logger:   logger,
	})

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Sessions:  sessions,
		Launcher:  launcher,
		Metrics:   metrics,
		JudgeMode: judgeMode,
		Voice: VoiceInfo{
			Provider:       cfg.VoiceProvider,
			Detail:         voiceSetup.detail,
			DefaultVoiceID: voiceSetup.defaultVoiceID,
			DefaultModelID: voiceSetup.defaultModelID,
		},
		Cleanup: transcriptLog.Close,
	}, nil
}
