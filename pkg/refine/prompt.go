package refine

import (
	"fmt"
	"strings"

	"thoreinstein.com/scommit/pkg/changes"
)

// Prompt limits.
const (
	MaxRecentSubjects   = 6
	MaxChangeLines      = 24
	DefaultExcerptChars = 4000
)

// SystemPrompt fixes the reply contract for the model.
const SystemPrompt = `You are a git commit assistant. Produce informative, specific commit messages that mirror the repo's tone. ` +
	`Respond strictly as JSON with keys "subject" and "body". Subject <=72 chars, sentence case, no trailing period. ` +
	`Body must be 2-5 bullets starting with '- ', focusing on concrete changes and motivations; ` +
	`mention new commands/flags/examples, doc sections touched, and any behavioral impacts.`

const closingInstruction = "Write 2-5 bullets that capture the most meaningful changes (what/why), " +
	"call out new commands/flags/examples or config/doc topics when present, " +
	"and note any behavioral impacts or risks. Avoid generic wording; be specific to these changes."

// BuildPrompt renders the user turn sent to the model.
func BuildPrompt(in Input) string {
	var b strings.Builder

	s := in.Stats
	fmt.Fprintf(&b, "Repo stats: files %d, +%d, -%d; categories %s; new %d, removed %d.\n",
		s.Files, s.Added, s.Deleted, categorySummary(s), s.NewFiles, s.RemovedFiles)

	b.WriteString("Recent commit subjects:\n")
	recent := in.RecentSubjects
	if len(recent) > MaxRecentSubjects {
		recent = recent[:MaxRecentSubjects]
	}
	if len(recent) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, subject := range recent {
		b.WriteString("- " + subject + "\n")
	}

	b.WriteString("Changes (staged):\n")
	for i, ch := range in.Changes {
		if i == MaxChangeLines {
			break
		}
		fmt.Fprintf(&b, "%s %s (+%d/-%d) [%s]\n", ch.Status.Verb(), changeDetail(ch), ch.Added, ch.Deleted, ch.Category.Label())
	}

	limit := in.ExcerptChars
	if limit <= 0 {
		limit = DefaultExcerptChars
	}
	fmt.Fprintf(&b, "\nDiffstat:\n%s\n\nDiff excerpt (trimmed):\n%s\n\n", strings.TrimRight(in.DiffStat, "\n"), cutRunes(in.DiffExcerpt, limit))
	b.WriteString(closingInstruction)

	return b.String()
}

func changeDetail(ch changes.FileChange) string {
	if ch.Status == changes.Renamed && ch.From != "" {
		return ch.From + " -> " + ch.Path
	}
	return ch.Path
}

// categorySummary lists present categories in priority order as "label: count".
func categorySummary(s changes.Stats) string {
	list := s.CategoryList()
	if len(list) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(list))
	for _, c := range list {
		parts = append(parts, fmt.Sprintf("%s: %d", c.Label(), s.Categories[c]))
	}
	return strings.Join(parts, ", ")
}

func cutRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
