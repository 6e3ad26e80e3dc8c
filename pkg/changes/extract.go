package changes

import (
	"strconv"
	"strings"
)

type lineCounts struct {
	added   int
	deleted int
}

// Extract builds the change list from `git diff --cached --numstat` and
// `git diff --cached --name-status` output. Order follows name-status.
// Malformed lines are skipped and unparseable counts become zero.
func Extract(numstat, nameStatus string) []FileChange {
	counts := parseNumstat(numstat)

	var out []FileChange
	for _, line := range strings.Split(nameStatus, "\n") {
		change, ok := parseNameStatusLine(line)
		if !ok {
			continue
		}

		c, found := counts[change.Path]
		if !found && change.From != "" {
			c = counts[change.From]
		}
		change.Added = c.added
		change.Deleted = c.deleted
		change.Category = Classify(change.Path)

		out = append(out, change)
	}
	return out
}

func parseNumstat(numstat string) map[string]lineCounts {
	counts := make(map[string]lineCounts)
	for _, line := range strings.Split(numstat, "\n") {
		fields := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 3)
		if len(fields) < 3 {
			continue
		}
		p := renameDestination(strings.TrimSpace(fields[2]))
		if p == "" {
			continue
		}
		counts[p] = lineCounts{
			added:   parseCount(fields[0]),
			deleted: parseCount(fields[1]),
		}
	}
	return counts
}

// parseCount returns 0 for "-" (binary files) and anything else non-numeric.
func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// renameDestination resolves numstat rename notation to the new path:
// "old => new" and "dir/{old => new}/file".
func renameDestination(p string) string {
	if !strings.Contains(p, " => ") {
		return p
	}

	open := strings.IndexByte(p, '{')
	end := strings.IndexByte(p, '}')
	if open >= 0 && end > open {
		inner := p[open+1 : end]
		_, to, _ := strings.Cut(inner, " => ")
		prefix, suffix := p[:open], p[end+1:]
		// "dir/{a => }/x" leaves a doubled slash behind.
		if to == "" && strings.HasSuffix(prefix, "/") && strings.HasPrefix(suffix, "/") {
			suffix = suffix[1:]
		}
		return prefix + to + suffix
	}

	_, to, _ := strings.Cut(p, " => ")
	return to
}

func parseNameStatusLine(line string) (FileChange, bool) {
	fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
	if len(fields) < 2 {
		return FileChange{}, false
	}

	code := strings.TrimSpace(fields[0])
	p := strings.TrimSpace(fields[1])
	if code == "" || p == "" {
		return FileChange{}, false
	}

	change := FileChange{Path: p, Status: Modified}
	switch code[0] {
	case 'A':
		change.Status = Added
	case 'D':
		change.Status = Deleted
	case 'R':
		if len(fields) < 3 || strings.TrimSpace(fields[2]) == "" {
			return change, true
		}
		change.Status = Renamed
		change.From = p
		change.Path = strings.TrimSpace(fields[2])
	}
	return change, true
}
