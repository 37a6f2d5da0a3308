// Package export turns a finished interview into its persisted artifacts: the
// plain-text summary, the structured candidate record and the relabelled
// transcript.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Interest levels accepted in a structured record.
const (
	InterestHigh   = "High"
	InterestMedium = "Medium"
	InterestLow    = "Low"
)

// Structured is the fixed-schema candidate record.
type Structured struct {
	Name          string `json:"Name"`
	InterestLevel string `json:"InterestLevel"`
	NoticePeriod  string `json:"NoticePeriod"`
	Background    string `json:"Background"`
}

// ParseFailure stands in for Structured when the model output could not be
// decoded.
type ParseFailure struct {
	Error     string `json:"error"`
	RawOutput string `json:"raw_output"`
}

// Outcome holds exactly one of Record or Failure.
type Outcome struct {
	Record  *Structured
	Failure *ParseFailure
}

// Name returns the candidate name when a record was parsed.
func (o Outcome) Name() string {
	if o.Record == nil {
		return ""
	}
	return strings.TrimSpace(o.Record.Name)
}

func (o Outcome) Failed() bool { return o.Record == nil }

func (o Outcome) MarshalJSON() ([]byte, error) {
	switch {
	case o.Record != nil:
		return json.Marshal(o.Record)
	case o.Failure != nil:
		return json.Marshal(o.Failure)
	default:
		return []byte("null"), nil
	}
}

var errEmptyOutput = errors.New("empty model output")

// Parse decodes model output into an Outcome. Code fences around the JSON are
// stripped first. Anything that does not decode into the four fields with a
// known interest level becomes a ParseFailure carrying the raw text.
func Parse(raw string) Outcome {
	rec, err := decode(raw)
	if err != nil {
		return Outcome{Failure: &ParseFailure{Error: err.Error(), RawOutput: raw}}
	}
	return Outcome{Record: rec}
}

func decode(raw string) (*Structured, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, errEmptyOutput
	}
	var rec Structured
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decode structured record: %w", err)
	}
	level, ok := normalizeInterest(rec.InterestLevel)
	if !ok {
		return nil, fmt.Errorf("unknown interest level %q", rec.InterestLevel)
	}
	rec.InterestLevel = level
	rec.Name = strings.TrimSpace(rec.Name)
	rec.NoticePeriod = strings.TrimSpace(rec.NoticePeriod)
	rec.Background = strings.TrimSpace(rec.Background)
	return &rec, nil
}

// stripFences removes a surrounding ``` block, with or without a language tag.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(s[:nl]); tag == "" || !strings.ContainsAny(tag, "{[\"") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalizeInterest(v string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "high":
		return InterestHigh, true
	case "medium":
		return InterestMedium, true
	case "low":
		return InterestLow, true
	default:
		return "", false
	}
}
