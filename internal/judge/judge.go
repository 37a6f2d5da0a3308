// Package judge adapts language-model calls into the judgements an interview
// needs: answer validation, "no more questions" intent, FAQ answers, the
// closing summary and the structured candidate record.
package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Judge is the full set of model-backed capabilities used by an interview.
type Judge interface {
	Validate(ctx context.Context, question, answer string) (Verdict, error)
	DetectNoQuestion(ctx context.Context, text string) (bool, error)
	AnswerFAQ(ctx context.Context, faq, question string) (string, error)
	Summarize(ctx context.Context, transcript string) (string, error)
	Extract(ctx context.Context, transcript string) (string, error)
}

// CallObserver is notified after every model call with the call name, its
// duration and the resulting error (nil on success).
type CallObserver func(call string, elapsed time.Duration, err error)

// Config controls judge construction.
type Config struct {
	Mode             string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	HTTPURL          string
	Timeout          time.Duration
	MaxRetries       int
	Observer         CallObserver
}

// New builds a judge for cfg.Mode: auto, anthropic, http or mock. Auto picks
// Anthropic when an API key is set, then the HTTP endpoint, then the mock.
func New(cfg Config) (Judge, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	if mode == "auto" {
		switch {
		case strings.TrimSpace(cfg.AnthropicAPIKey) != "":
			mode = "anthropic"
		case strings.TrimSpace(cfg.HTTPURL) != "":
			mode = "http"
		default:
			mode = "mock"
		}
	}

	switch mode {
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, "", errors.New("ANTHROPIC_API_KEY is required for anthropic mode")
		}
		c := NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, cfg.Timeout, cfg.MaxRetries)
		return NewLLMJudge(c, DefaultPrompts(), cfg.Observer), mode, nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, "", errors.New("judge HTTP url is required for http mode")
		}
		c := NewHTTPClient(cfg.HTTPURL, cfg.Timeout, cfg.MaxRetries)
		return NewLLMJudge(c, DefaultPrompts(), cfg.Observer), mode, nil
	case "mock":
		return NewMockJudge(), mode, nil
	default:
		return nil, "", fmt.Errorf("unsupported judge mode %q", cfg.Mode)
	}
}

// LLMJudge renders prompts and parses replies from a Completer.
type LLMJudge struct {
	completer Completer
	prompts   Prompts
	observe   CallObserver
}

func NewLLMJudge(c Completer, prompts Prompts, observe CallObserver) *LLMJudge {
	return &LLMJudge{completer: c, prompts: prompts, observe: observe}
}

func (j *LLMJudge) Validate(ctx context.Context, question, answer string) (Verdict, error) {
	raw, err := j.call(ctx, "validate", j.prompts.Validation, map[string]string{
		"Question": question,
		"Answer":   answer,
	})
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(raw), nil
}

func (j *LLMJudge) DetectNoQuestion(ctx context.Context, text string) (bool, error) {
	raw, err := j.call(ctx, "no_question", j.prompts.NoQuestion, map[string]string{"Input": text})
	if err != nil {
		return false, err
	}
	return ParseNoQuestionIntent(raw), nil
}

func (j *LLMJudge) AnswerFAQ(ctx context.Context, faq, question string) (string, error) {
	return j.call(ctx, "faq", j.prompts.FAQ, map[string]string{"FAQ": faq, "Question": question})
}

func (j *LLMJudge) Summarize(ctx context.Context, transcript string) (string, error) {
	return j.call(ctx, "summary", j.prompts.Summary, map[string]string{"Transcript": transcript})
}

func (j *LLMJudge) Extract(ctx context.Context, transcript string) (string, error) {
	return j.call(ctx, "structured", j.prompts.Structured, map[string]string{"Transcript": transcript})
}

func (j *LLMJudge) call(ctx context.Context, name string, tmpl *template.Template, data map[string]string) (string, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", err
	}

	started := time.Now()
	out, err := j.completer.Complete(ctx, prompt)
	if j.observe != nil {
		j.observe(name, time.Since(started), err)
	}
	if err != nil {
		return "", fmt.Errorf("%s call: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}
