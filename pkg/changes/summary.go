package changes

// Summary is the serializable view of a change set printed by `scommit summary`.
type Summary struct {
	Files        int            `json:"files" yaml:"files"`
	Added        int            `json:"added" yaml:"added"`
	Deleted      int            `json:"deleted" yaml:"deleted"`
	NewFiles     int            `json:"new_files" yaml:"new_files"`
	RemovedFiles int            `json:"removed_files" yaml:"removed_files"`
	Categories   map[string]int `json:"categories" yaml:"categories"`
	Changes      []ChangeEntry  `json:"changes" yaml:"changes"`
}

// ChangeEntry is one file in a Summary.
type ChangeEntry struct {
	Status   string `json:"status" yaml:"status"`
	Path     string `json:"path" yaml:"path"`
	From     string `json:"from,omitempty" yaml:"from,omitempty"`
	Added    int    `json:"added" yaml:"added"`
	Deleted  int    `json:"deleted" yaml:"deleted"`
	Category string `json:"category" yaml:"category"`
}

// Summarize builds a Summary from changes and their stats.
func Summarize(changes []FileChange, stats Stats) Summary {
	s := Summary{
		Files:        stats.Files,
		Added:        stats.Added,
		Deleted:      stats.Deleted,
		NewFiles:     stats.NewFiles,
		RemovedFiles: stats.RemovedFiles,
		Categories:   make(map[string]int, len(stats.Categories)),
		Changes:      make([]ChangeEntry, 0, len(changes)),
	}
	for c, n := range stats.Categories {
		s.Categories[c.Label()] = n
	}
	for _, c := range changes {
		s.Changes = append(s.Changes, ChangeEntry{
			Status:   c.Status.String(),
			Path:     c.Path,
			From:     c.From,
			Added:    c.Added,
			Deleted:  c.Deleted,
			Category: c.Category.Label(),
		})
	}
	return s
}
