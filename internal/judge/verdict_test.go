package judge

import "testing"

func TestParseVerdictAcceptsAnyYesPrefix(t *testing.T) {
	for _, raw := range []string{"yes", "Yes.", "  YES it does", "Yes, but it could be clearer", "yesterday"} {
		if v := ParseVerdict(raw); !v.Accepted() {
			t.Fatalf("ParseVerdict(%q) = %+v, want accepted", raw, v)
		}
		if v := ParseVerdict(raw); v.Feedback != "" {
			t.Fatalf("ParseVerdict(%q).Feedback = %q, want empty", raw, v.Feedback)
		}
	}
}

func TestParseVerdictRejectionFeedback(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: "No. Could you describe your last role?", want: "Could you describe your last role?"},
		{raw: "no, what did you study?", want: "what did you study?"},
		{raw: "NO", want: ""},
		{raw: "Now tell me about your degree.", want: "Now tell me about your degree."},
		{raw: "Nobody answered that.", want: "Nobody answered that."},
		{raw: "  Please be specific.  ", want: "Please be specific."},
		{raw: "", want: ""},
	}
	for _, tc := range cases {
		v := ParseVerdict(tc.raw)
		if v.Accepted() {
			t.Fatalf("ParseVerdict(%q) accepted, want rejected", tc.raw)
		}
		if v.Feedback != tc.want {
			t.Fatalf("ParseVerdict(%q).Feedback = %q, want %q", tc.raw, v.Feedback, tc.want)
		}
	}
}

func TestParseNoQuestionIntentIsExactMatch(t *testing.T) {
	cases := map[string]bool{
		"no_question":     true,
		"  NO_QUESTION\n": true,
		"no_question.":    false,
		"No questions":    false,
		"has_question":    false,
		"no_question yes": false,
		"":                false,
	}
	for raw, want := range cases {
		if got := ParseNoQuestionIntent(raw); got != want {
			t.Fatalf("ParseNoQuestionIntent(%q) = %v, want %v", raw, got, want)
		}
	}
}

// Validation accepts on a prefix while intent needs the exact label; both
// behaviors are relied on by interview flows.
func TestVerdictAndIntentMatchingDiffer(t *testing.T) {
	if !ParseVerdict("yes.").Accepted() {
		t.Fatalf("ParseVerdict(yes.) rejected, want accepted")
	}
	if ParseNoQuestionIntent("no_question.") {
		t.Fatalf("ParseNoQuestionIntent(no_question.) = true, want false")
	}
}

func TestVerdictKindString(t *testing.T) {
	if got := VerdictAccepted.String(); got != "accepted" {
		t.Fatalf("VerdictAccepted.String() = %q", got)
	}
	if got := VerdictRejected.String(); got != "rejected" {
		t.Fatalf("VerdictRejected.String() = %q", got)
	}
	if got := VerdictKind(0).String(); got != "unknown" {
		t.Fatalf("VerdictKind(0).String() = %q", got)
	}
}
