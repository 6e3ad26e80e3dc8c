package refine

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"thoreinstein.com/scommit/pkg/ai"
	"thoreinstein.com/scommit/pkg/changes"
	"thoreinstein.com/scommit/pkg/config"
	scerrors "thoreinstein.com/scommit/pkg/errors"
	"thoreinstein.com/scommit/pkg/message"
)

type fakeProvider struct {
	replies []string
	errs    []error
	calls   int
	last    []ai.Message
	opts    ai.ChatOptions
}

func (f *fakeProvider) Name() string      { return "fake" }
func (f *fakeProvider) IsAvailable() bool { return true }

func (f *fakeProvider) Chat(_ context.Context, msgs []ai.Message, opts ai.ChatOptions) (*ai.Response, error) {
	i := f.calls
	f.calls++
	f.last = msgs
	f.opts = opts
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &ai.Response{Content: reply}, nil
}

func jsonNumber(s string) json.Number { return json.Number(s) }

func sampleInput() Input {
	cs := []changes.FileChange{
		{Path: "README.md", Status: changes.Modified, Added: 4, Deleted: 1, Category: changes.Docs},
		{Path: "cmd/root.go", From: "cmd/main.go", Status: changes.Renamed, Added: 2, Deleted: 2, Category: changes.Code},
	}
	return Input{
		Changes:        cs,
		Stats:          changes.Aggregate(cs),
		RecentSubjects: []string{"Add parser", "Fix typo"},
		DiffStat:       " README.md | 5 +++--\n",
		DiffExcerpt:    "diff --git a/README.md b/README.md",
	}
}

func newTestRefiner(p ai.Provider) *Refiner {
	r := New(p, nil, nil)
	r.Retry.BaseDelay = time.Millisecond
	r.Retry.MaxDelay = time.Millisecond
	return r
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"fenced", "```json\n{\"subject\":\"x\",\"body\":\"y\"}\n```", `{"subject":"x","body":"y"}`, true},
		{"fenced without language", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"object on fence line", "```json {\"subject\":\"Fix parser\",\"body\":\"- a\"}\n```", `{"subject":"Fix parser","body":"- a"}`, true},
		{"unclosed fence with backticks in body", "```json\n{\"subject\":\"Add docs\",\"body\":\"see ``` blocks\"}", "{\"subject\":\"Add docs\",\"body\":\"see ``` blocks\"}", true},
		{"prose around object", "Sure! {\"a\":1} hope that helps", `{"a":1}`, true},
		{"bare", `  {"a":1}  `, `{"a":1}`, true},
		{"no object", "nothing here", "", false},
		{"reversed braces", "} {", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sanitize(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Sanitize(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParse_FencedReplies(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantSubject string
		wantBody    string
	}{
		{"object on fence line", "```json {\"subject\":\"Fix parser\",\"body\":\"- a\"}\n```", "Fix parser", "- a"},
		{"unclosed fence", "```json\n{\"subject\":\"Add docs\",\"body\":\"see ``` blocks\"}", "Add docs", "see ``` blocks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body, err := Parse(tt.reply)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if subject != tt.wantSubject || body != tt.wantBody {
				t.Errorf("Parse() = %q, %q; want %q, %q", subject, body, tt.wantSubject, tt.wantBody)
			}
		})
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   string
		wantOK bool
	}{
		{"string", "hi", "hi", true},
		{"number", jsonNumber("42"), "42", true},
		{"float", 1.5, "1.5", true},
		{"bool", true, "true", true},
		{"array", []any{"a", nil, "b"}, "a\nb", true},
		{"empty array", []any{nil}, "", false},
		{"object key order", map[string]any{"summary": "s", "content": "c"}, "c", true},
		{"nested object", map[string]any{"text": map[string]any{"value": "deep"}}, "deep", true},
		{"object without text", map[string]any{"other": "x"}, "", false},
		{"null", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractText(tt.value)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractText(%v) = %q, %v; want %q, %v", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCoerceBody(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string trimmed", "  - one\n- two  ", "- one\n- two"},
		{"array bullets", []any{"fix bug", "- already bulleted"}, "- fix bug\n- already bulleted"},
		{"unicode bullet", []any{"• dotted", "--  dashes"}, "- dotted\n- dashes"},
		{"bullets key", map[string]any{"bullets": []any{"a"}}, "- a"},
		{"lines key", map[string]any{"lines": "plain"}, "plain"},
		{"object text", map[string]any{"text": " t "}, "t"},
		{"number", jsonNumber("3"), ""},
		{"missing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceBody(tt.value); got != tt.want {
				t.Errorf("CoerceBody(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestCoerceSubject(t *testing.T) {
	got, err := CoerceSubject(map[string]any{"text": "  Add CLI  "})
	if err != nil || got != "Add CLI" {
		t.Errorf("CoerceSubject(object) = %q, %v; want %q, nil", got, err, "Add CLI")
	}

	for _, value := range []any{"   ", nil} {
		if _, err := CoerceSubject(value); !scerrors.Is(err, ErrNoUsableSubject) {
			t.Errorf("CoerceSubject(%v) error = %v, want ErrNoUsableSubject", value, err)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	_, _, err := Parse("I cannot help with that")
	if !scerrors.Is(err, ErrMissingJSON) {
		t.Fatalf("Parse(prose) error = %v, want ErrMissingJSON", err)
	}
	if !strings.Contains(err.Error(), "AI response missing JSON object: I cannot help") {
		t.Errorf("error message = %q", err.Error())
	}

	tests := []struct {
		reply    string
		sentinel error
	}{
		{`{"subject": }`, ErrDecode},
		{`{"subject":"a"} {"subject":"b"}`, ErrDecode},
		{`{"body":"- x"}`, ErrNoUsableSubject},
	}
	for _, tt := range tests {
		if _, _, err := Parse(tt.reply); !scerrors.Is(err, tt.sentinel) {
			t.Errorf("Parse(%q) error = %v, want %v", tt.reply, err, tt.sentinel)
		}
	}
}

func TestParse_NumberSubject(t *testing.T) {
	subject, body, err := Parse(`{"subject": 12345678901234567890, "body": ["x"]}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if subject != "12345678901234567890" || body != "- x" {
		t.Errorf("Parse() = %q, %q", subject, body)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleInput())

	if !strings.HasPrefix(prompt, "Repo stats: files 2, +6, -3; categories docs: 1, code: 1; new 0, removed 0.\n") {
		t.Errorf("prompt header = %q", strings.SplitN(prompt, "\n", 2)[0])
	}
	for _, want := range []string{
		"Recent commit subjects:\n- Add parser\n- Fix typo\n",
		"update README.md (+4/-1) [docs]\n",
		"rename cmd/main.go -> cmd/root.go (+2/-2) [code]\n",
		"\nDiffstat:\n README.md | 5 +++--\n\nDiff excerpt (trimmed):\ndiff --git",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.HasSuffix(prompt, closingInstruction) {
		t.Error("prompt should end with the closing instruction")
	}
}

func TestBuildPrompt_Limits(t *testing.T) {
	var cs []changes.FileChange
	for range 30 {
		cs = append(cs, changes.FileChange{Path: "f.go", Category: changes.Code})
	}
	var recent []string
	for range 10 {
		recent = append(recent, "subject")
	}

	prompt := BuildPrompt(Input{
		Changes:        cs,
		Stats:          changes.Aggregate(cs),
		RecentSubjects: recent,
		DiffExcerpt:    strings.Repeat("é", 5000),
	})

	if got := strings.Count(prompt, "update f.go"); got != MaxChangeLines {
		t.Errorf("change lines = %d, want %d", got, MaxChangeLines)
	}
	if got := strings.Count(prompt, "- subject\n"); got != MaxRecentSubjects {
		t.Errorf("recent subjects = %d, want %d", got, MaxRecentSubjects)
	}
	if got := strings.Count(prompt, "é"); got != DefaultExcerptChars {
		t.Errorf("excerpt runes = %d, want %d", got, DefaultExcerptChars)
	}

	empty := BuildPrompt(Input{})
	if !strings.Contains(empty, "categories none") || !strings.Contains(empty, "- (none)\n") {
		t.Errorf("empty prompt = %q", empty)
	}
}

func TestRefine_Success(t *testing.T) {
	p := &fakeProvider{replies: []string{"```json\n{\"subject\":\"Document install steps\",\"body\":[\"add brew section\",\"- note PATH\"]}\n```"}}

	msg, err := newTestRefiner(p).Refine(t.Context(), sampleInput())
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if msg == nil {
		t.Fatal("Refine() returned nil message")
	}

	want := message.Message{Subject: "Document install steps", Body: "- add brew section\n- note PATH", Source: message.SourceAI}
	if *msg != want {
		t.Errorf("Refine() = %+v, want %+v", *msg, want)
	}

	if len(p.last) != 2 || p.last[0].Content != SystemPrompt {
		t.Errorf("messages = %+v, want system prompt then user prompt", p.last)
	}
	if !p.opts.JSON || p.opts.MaxTokens != DefaultMaxTokens {
		t.Errorf("ChatOptions = %+v", p.opts)
	}
	if p.opts.Temperature == nil || *p.opts.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", p.opts.Temperature, DefaultTemperature)
	}
}

func TestRefine_NoContent(t *testing.T) {
	p := &fakeProvider{errs: []error{scerrors.Wrap(ai.ErrNoContent, "openai")}}

	msg, err := newTestRefiner(p).Refine(t.Context(), sampleInput())
	if err != nil || msg != nil {
		t.Errorf("Refine() = %v, %v; want nil, nil", msg, err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestRefine_HardFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		sentinel error
	}{
		{"missing json", &fakeProvider{replies: []string{"no json"}}, ErrMissingJSON},
		{"decode", &fakeProvider{replies: []string{"{bad}"}}, ErrDecode},
		{"no subject", &fakeProvider{replies: []string{`{"subject": ""}`}}, ErrNoUsableSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := newTestRefiner(tt.provider).Refine(t.Context(), sampleInput())
			if msg != nil {
				t.Errorf("Refine() message = %+v, want nil", msg)
			}
			if !scerrors.Is(err, tt.sentinel) {
				t.Fatalf("Refine() error = %v, want %v", err, tt.sentinel)
			}

			var aiErr *scerrors.AIError
			if !scerrors.As(err, &aiErr) {
				t.Fatalf("Refine() error = %T, want *AIError", err)
			}
			if aiErr.Operation != "Refine" || aiErr.Provider != "fake" {
				t.Errorf("AIError = %s/%s, want fake/Refine", aiErr.Provider, aiErr.Operation)
			}
		})
	}
}

func TestRefine_RetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{
		errs:    []error{scerrors.NewAIErrorWithStatus("fake", "Chat", http.StatusServiceUnavailable, "busy")},
		replies: []string{"", `{"subject":"Retry worked"}`},
	}

	msg, err := newTestRefiner(p).Refine(t.Context(), sampleInput())
	if err != nil || msg == nil {
		t.Fatalf("Refine() = %v, %v", msg, err)
	}
	if msg.Subject != "Retry worked" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestRefine_PermanentErrorNotRetried(t *testing.T) {
	p := &fakeProvider{errs: []error{scerrors.NewAIErrorWithStatus("fake", "Chat", http.StatusUnauthorized, "bad key")}}

	_, err := newTestRefiner(p).Refine(t.Context(), sampleInput())
	if !scerrors.IsAIError(err) {
		t.Errorf("Refine() error = %v, want AIError", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestNew_FromConfig(t *testing.T) {
	cfg := config.Default().AI
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 3
	cfg.Temperature = 0.7
	cfg.MaxTokens = 100

	r := New(&fakeProvider{}, &cfg, nil)
	if r.Timeout != 5*time.Second || r.Retry.MaxRetries != 3 || r.Temperature != 0.7 || r.MaxTokens != 100 {
		t.Errorf("New() = timeout %v, retries %d, temperature %v, max tokens %d",
			r.Timeout, r.Retry.MaxRetries, r.Temperature, r.MaxTokens)
	}
}

func TestRefine_ZeroTemperatureIsSent(t *testing.T) {
	cfg := config.Default().AI
	cfg.Temperature = 0

	p := &fakeProvider{replies: []string{`{"subject":"Deterministic"}`}}
	if _, err := New(p, &cfg, nil).Refine(t.Context(), sampleInput()); err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if p.opts.Temperature == nil || *p.opts.Temperature != 0 {
		t.Errorf("Temperature = %v, want explicit 0", p.opts.Temperature)
	}
}

func TestRefine_NoProvider(t *testing.T) {
	_, err := (&Refiner{}).Refine(t.Context(), Input{})
	if !scerrors.IsAIError(err) {
		t.Errorf("Refine() error = %v, want AIError", err)
	}
}
