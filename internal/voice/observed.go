package voice

import (
	"context"

	"github.com/ent0n29/screener/internal/interview"
)

type observedSpeech struct {
	interview.Speech
	hook func(text string)
}

// Observed calls hook with each line before it is spoken.
func Observed(s interview.Speech, hook func(text string)) interview.Speech {
	if hook == nil {
		return s
	}
	return &observedSpeech{Speech: s, hook: hook}
}

func (o *observedSpeech) Speak(ctx context.Context, text string) error {
	o.hook(text)
	return o.Speech.Speak(ctx, text)
}
