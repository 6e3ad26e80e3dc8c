package changes

// Stats summarizes a change list.
type Stats struct {
	Files        int
	Added        int
	Deleted      int
	Categories   map[Category]int // Only categories that occur
	NewFiles     int
	RemovedFiles int
}

// Aggregate folds changes into Stats.
func Aggregate(changes []FileChange) Stats {
	s := Stats{Categories: make(map[Category]int)}
	for _, c := range changes {
		s.Files++
		s.Added += c.Added
		s.Deleted += c.Deleted
		s.Categories[c.Category]++

		switch c.Status {
		case Added:
			s.NewFiles++
		case Deleted:
			s.RemovedFiles++
		}
	}
	return s
}

// Only reports the single category present, if exactly one is.
func (s Stats) Only() (Category, bool) {
	if len(s.Categories) != 1 {
		return Other, false
	}
	for c := range s.Categories {
		return c, true
	}
	return Other, false
}

// Has reports whether any change falls into c.
func (s Stats) Has(c Category) bool {
	return s.Categories[c] > 0
}

// CategoryList returns the present categories in priority order.
func (s Stats) CategoryList() []Category {
	var out []Category
	for _, c := range AllCategories {
		if s.Categories[c] > 0 {
			out = append(out, c)
		}
	}
	return out
}
