// Package message composes commit messages from classified changes.
package message

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"thoreinstein.com/scommit/pkg/changes"
)

const (
	// MaxSubjectLen is the hard limit on subject length in bytes.
	MaxSubjectLen = 72

	// MaxBodyEntries is the number of changes listed before summarizing the rest.
	MaxBodyEntries = 12

	// Trailer closes every heuristic body.
	Trailer = "Auto-generated by scommit. Edit with --message if you want to override."

	timestampLayout = "2006-01-02 15:04"
)

// Source records where a message came from.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceAI        Source = "ai"
	SourceManual    Source = "manual"
)

// Message is a commit subject and body.
type Message struct {
	Subject string
	Body    string
	Source  Source
}

// Full renders the message as git stores it.
func (m Message) Full() string {
	body := strings.TrimSpace(m.Body)
	if body == "" {
		return m.Subject
	}
	return m.Subject + "\n\n" + body
}

// Composer derives deterministic messages from a change set.
type Composer struct {
	// Now supplies the body timestamp; nil means time.Now.
	Now func() time.Time
}

// NewComposer returns a Composer using the wall clock.
func NewComposer() *Composer {
	return &Composer{Now: time.Now}
}

// Compose returns the heuristic message for changes.
func (c *Composer) Compose(cs []changes.FileChange, stats changes.Stats) Message {
	return Message{
		Subject: c.Subject(cs, stats),
		Body:    c.Body(cs, stats),
		Source:  SourceHeuristic,
	}
}

// WithSubject pairs a caller-supplied subject with the heuristic body.
func (c *Composer) WithSubject(subject string, cs []changes.FileChange, stats changes.Stats) Message {
	return Message{
		Subject: strings.TrimSpace(subject),
		Body:    c.Body(cs, stats),
		Source:  SourceManual,
	}
}

// Subject returns "{prefix}: update {focus}" cut to MaxSubjectLen.
func (c *Composer) Subject(cs []changes.FileChange, stats changes.Stats) string {
	return Truncate(fmt.Sprintf("%s: update %s", ChoosePrefix(stats), focus(cs)), MaxSubjectLen)
}

// Body lists up to MaxBodyEntries changes under a stats header.
func (c *Composer) Body(cs []changes.FileChange, stats changes.Stats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Files: %d | +%d / -%d | generated %s\n",
		stats.Files, stats.Added, stats.Deleted, c.now().Format(timestampLayout))
	b.WriteString("Changes:\n")

	for i, ch := range cs {
		if i == MaxBodyEntries {
			break
		}
		fmt.Fprintf(&b, "- %s\n", EntryLine(ch))
	}
	if len(cs) > MaxBodyEntries {
		fmt.Fprintf(&b, "- ... %d more file(s) not listed\n", len(cs)-MaxBodyEntries)
	}

	b.WriteString("\n" + Trailer + "\n")
	return b.String()
}

func (c *Composer) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// EntryLine renders one change as "{verb} {target} (+a/-d) [label]".
func EntryLine(ch changes.FileChange) string {
	return fmt.Sprintf("%s %s (+%d/-%d) [%s]",
		ch.Status.Verb(), ch.Target(), ch.Added, ch.Deleted, ch.Category.Label())
}

// ChoosePrefix picks the conventional-commit type for the change set.
func ChoosePrefix(stats changes.Stats) string {
	if only, ok := stats.Only(); ok {
		switch only {
		case changes.Docs:
			return "docs"
		case changes.Tests:
			return "test"
		case changes.Config:
			return "chore"
		}
	}

	switch {
	case stats.NewFiles > 0 && stats.Added > stats.Deleted:
		return "feat"
	case stats.Deleted > stats.Added && stats.Has(changes.Code):
		return "refactor"
	default:
		return "chore"
	}
}

// focus names the two files with the most churn, ties kept in input order.
func focus(cs []changes.FileChange) string {
	if len(cs) == 0 {
		return "changes"
	}

	ranked := slices.Clone(cs)
	slices.SortStableFunc(ranked, func(a, b changes.FileChange) int {
		return b.Churn() - a.Churn()
	})

	names := make([]string, 0, 2)
	for _, ch := range ranked[:min(2, len(ranked))] {
		names = append(names, path.Base(ch.Path))
	}
	return strings.Join(names, " & ")
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
