package judge

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// MockJudge gives deterministic judgements when no model backend is configured.
type MockJudge struct {
	MinAnswerWords int
}

func NewMockJudge() *MockJudge { return &MockJudge{MinAnswerWords: 3} }

func (m *MockJudge) Validate(ctx context.Context, question, answer string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	if len(strings.Fields(answer)) >= m.MinAnswerWords {
		return Accept(), nil
	}
	return Reject("Could you tell me a bit more? " + question), nil
}

func (m *MockJudge) DetectNoQuestion(ctx context.Context, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	norm := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range []string{"no question", "no more question", "nothing else", "that's all", "that is all"} {
		if strings.Contains(norm, phrase) {
			return true, nil
		}
	}
	return norm == "no" || norm == "nope", nil
}

func (m *MockJudge) AnswerFAQ(ctx context.Context, faq, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	words := strings.Fields(strings.ToLower(question))
	for _, line := range strings.Split(faq, "\n") {
		lower := strings.ToLower(line)
		for _, w := range words {
			if len(w) > 3 && strings.Contains(lower, strings.Trim(w, "?.,!")) {
				return strings.TrimSpace(line), nil
			}
		}
	}
	return "I do not know the answer to that.", nil
}

func (m *MockJudge) Summarize(ctx context.Context, transcript string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lines := nonEmptyLines(transcript)
	return "The candidate completed the screening interview. " +
		"The transcript holds " + strconv.Itoa(len(lines)/2) + " question and answer pairs.", nil
}

func (m *MockJudge) Extract(ctx context.Context, transcript string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lines := nonEmptyLines(transcript)
	background := ""
	if len(lines) > 1 {
		background = lines[1]
	}
	out, err := json.Marshal(map[string]string{
		"Name":          "Candidate",
		"InterestLevel": "Medium",
		"NoticePeriod":  "Needs some time",
		"Background":    background,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}
