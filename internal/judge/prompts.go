package judge

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompts holds the parsed templates for every model call. Build it once and
// pass it to the judge.
type Prompts struct {
	Validation *template.Template
	NoQuestion *template.Template
	FAQ        *template.Template
	Summary    *template.Template
	Structured *template.Template
}

const validationPrompt = `You are a senior recruiter in an IT office. ` +
	`Your task is to determine if the user's answer directly addresses the specific question enclosed in triple backticks. ` +
	`If it does, respond with 'yes'. If it does not, respond with 'no' and rephrase the question to sound clearer ` +
	`to the interviewee using personal pronouns, in plain text without extra symbols. ` +
	"Question: ```{{.Question}}``` " +
	`Answer: {{.Answer}}`

const noQuestionPrompt = `You are a helpful assistant.
Decide if the following user input means they have no questions.

User input:
"{{.Input}}"

Answer with ONLY one word:
- "no_question" if the user indicates they do not have any questions.
- "has_question" if the user is actually asking something.`

const faqPrompt = "You are an HR assistant.\n" +
	"Answer the following question based on the provided FAQ document.\n\n" +
	"FAQ:\n```{{.FAQ}}```\n\n" +
	"Question:\n```{{.Question}}```\n\n" +
	"Provide a concise and relevant answer based on the context.\n" +
	"If the information is not in the FAQ document, say that you do not know instead of making something up.\n" +
	"Do not use any additional symbols like asterisks."

const summaryPrompt = "You are an HR assistant.\n" +
	"Summarize the following interview transcript in a concise manner.\n\n" +
	"Transcript:\n```{{.Transcript}}```\n\n" +
	"Provide a brief summary of the candidate's responses.\n" +
	"Do NOT include any headers, lists, or bullet points.\n" +
	"Use ONLY plain text.\n" +
	"Do NOT use any additional symbols like asterisks."

const structuredPrompt = "You are an HR assistant.\n" +
	"Summarize the following interview transcript and output ONLY a valid JSON object with exactly these keys:\n" +
	"- \"Name\": the candidate's full name\n" +
	"- \"InterestLevel\": interest in joining the team, one of High, Medium, Low\n" +
	"- \"NoticePeriod\": Ready now, Needs some time (mention the time), or Not ready\n" +
	"- \"Background\": a short description\n\n" +
	"Transcript:\n```{{.Transcript}}```\n\n" +
	"Respond with JSON only, no explanations, no markdown, no text outside the JSON."

// DefaultPrompts parses the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Validation: template.Must(template.New("validation").Parse(validationPrompt)),
		NoQuestion: template.Must(template.New("no_question").Parse(noQuestionPrompt)),
		FAQ:        template.Must(template.New("faq").Parse(faqPrompt)),
		Summary:    template.Must(template.New("summary").Parse(summaryPrompt)),
		Structured: template.Must(template.New("structured").Parse(structuredPrompt)),
	}
}

func render(t *template.Template, data any) (string, error) {
	if t == nil {
		return "", fmt.Errorf("prompt template not configured")
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}
