package interview

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts     = 4
	DefaultFinalizeTimeout = 90 * time.Second
)

// Utterances are the fixed lines the interviewer speaks.
type Utterances struct {
	Greeting      string `yaml:"greeting"`
	NoSpeech      string `yaml:"no_speech"`
	RejectLead    string `yaml:"reject_lead"`
	RejectTail    string `yaml:"reject_tail"`
	QAIntro       string `yaml:"qa_intro"`
	NoFAQSpoken   string `yaml:"no_faq_spoken"`
	NoFAQRecorded string `yaml:"no_faq_recorded"`
	Closing       string `yaml:"closing"`
}

func DefaultUtterances() Utterances {
	return Utterances{
		Greeting:      "Hello! Welcome to the program interview.",
		NoSpeech:      "I didn't hear a response. Please try again.",
		RejectLead:    "That doesn't quite answer the question.",
		RejectTail:    "Please give a more detailed answer.",
		QAIntro:       "If you have any questions for me, feel free to ask now. If not, you can say 'no questions' to proceed.",
		NoFAQSpoken:   "Sorry, I don't have any information to answer your question. We will check it later and let you know.",
		NoFAQRecorded: "No information available to answer the question.",
		Closing:       "Thank you for completing the interview!",
	}
}

// withDefaults fills every empty line from DefaultUtterances.
func (u Utterances) withDefaults() Utterances {
	d := DefaultUtterances()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&u.Greeting, d.Greeting)
	fill(&u.NoSpeech, d.NoSpeech)
	fill(&u.RejectLead, d.RejectLead)
	fill(&u.RejectTail, d.RejectTail)
	fill(&u.QAIntro, d.QAIntro)
	fill(&u.NoFAQSpoken, d.NoFAQSpoken)
	fill(&u.NoFAQRecorded, d.NoFAQRecorded)
	fill(&u.Closing, d.Closing)
	return u
}

// Rejection builds the line spoken after a rejected answer.
func (u Utterances) Rejection(feedback string) string {
	parts := []string{u.RejectLead}
	if fb := strings.TrimSpace(feedback); fb != "" {
		parts = append(parts, fb)
	}
	parts = append(parts, u.RejectTail)
	return strings.Join(parts, " ")
}

// Exhausted is the answer stored for a question that never got an accepted
// reply.
func Exhausted(attempts int, lastHeard string) string {
	if strings.TrimSpace(lastHeard) == "" {
		lastHeard = "(no speech detected)"
	}
	return fmt.Sprintf("No valid response after %d attempts: %s", attempts, lastHeard)
}

// Options configure a Session.
type Options struct {
	SessionID       string
	Questions       []Question
	MaxAttempts     int
	FAQ             string
	Utterances      Utterances
	FinalizeTimeout time.Duration
	Logger          *slog.Logger
	Observer        Observer
}

func (o Options) withDefaults() Options {
	if len(o.Questions) == 0 {
		o.Questions = DefaultQuestions
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.FinalizeTimeout <= 0 {
		o.FinalizeTimeout = DefaultFinalizeTimeout
	}
	o.Utterances = o.Utterances.withDefaults()
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}
