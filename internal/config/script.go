package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ent0n29/screener/internal/interview"
)

// Script is the interview content: what is asked and what is said.
type Script struct {
	Questions   []string             `yaml:"questions"`
	MaxAttempts int                  `yaml:"max_attempts"`
	FAQFile     string               `yaml:"faq_file"`
	Utterances  interview.Utterances `yaml:"utterances"`

	// FAQ holds the loaded FAQ document text.
	FAQ string `yaml:"-"`
}

// DefaultScript is used when no interview file is configured.
func DefaultScript() Script {
	qs := make([]string, len(interview.DefaultQuestions))
	for i, q := range interview.DefaultQuestions {
		qs[i] = string(q)
	}
	return Script{
		Questions:   qs,
		MaxAttempts: interview.DefaultMaxAttempts,
		Utterances:  interview.DefaultUtterances(),
	}
}

// LoadScript reads the interview file at path, or the default script when
// path is empty, and then loads the FAQ document. faqOverride wins over the
// file's faq_file; relative faq_file paths resolve against the script file.
func LoadScript(path, faqOverride string) (Script, error) {
	script := DefaultScript()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Script{}, fmt.Errorf("read interview file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &script); err != nil {
			return Script{}, fmt.Errorf("parse interview file %s: %w", path, err)
		}
		if script.FAQFile != "" && !filepath.IsAbs(script.FAQFile) {
			script.FAQFile = filepath.Join(filepath.Dir(path), script.FAQFile)
		}
	}
	if faqOverride != "" {
		script.FAQFile = faqOverride
	}
	if err := script.validate(); err != nil {
		return Script{}, fmt.Errorf("invalid interview script: %w", err)
	}
	if script.FAQFile != "" {
		data, err := os.ReadFile(script.FAQFile)
		if err != nil {
			return Script{}, fmt.Errorf("read faq file %s: %w", script.FAQFile, err)
		}
		script.FAQ = string(data)
	}
	return script, nil
}

func (s Script) validate() error {
	if len(s.Questions) == 0 {
		return fmt.Errorf("questions must not be empty")
	}
	seen := make(map[string]bool, len(s.Questions))
	for i, q := range s.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return fmt.Errorf("question %d is empty", i+1)
		}
		if seen[q] {
			return fmt.Errorf("question %d duplicates %q", i+1, q)
		}
		seen[q] = true
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}
	return nil
}

// InterviewQuestions converts the script questions to interview questions.
func (s Script) InterviewQuestions() []interview.Question {
	out := make([]interview.Question, len(s.Questions))
	for i, q := range s.Questions {
		out[i] = interview.Question(strings.TrimSpace(q))
	}
	return out
}
