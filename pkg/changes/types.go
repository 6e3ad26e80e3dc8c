// Package changes turns staged-diff output into classified file changes and
// summary counters.
package changes

// Status is the kind of change git reports for a path.
type Status int

const (
	Modified Status = iota
	Added
	Deleted
	Renamed
)

// Verb returns the word used for the status in message bodies and prompts.
func (s Status) Verb() string {
	switch s {
	case Added:
		return "add"
	case Deleted:
		return "remove"
	case Renamed:
		return "rename"
	default:
		return "update"
	}
}

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "modified"
	}
}

// Category is the semantic bucket of a changed file.
type Category int

// Categories in classification priority order.
const (
	Docs Category = iota
	Tests
	Config
	Code
	Other
)

// AllCategories lists every category in priority order.
var AllCategories = []Category{Docs, Tests, Config, Code, Other}

// Label returns the fixed display label.
func (c Category) Label() string {
	switch c {
	case Docs:
		return "docs"
	case Tests:
		return "tests"
	case Config:
		return "config"
	case Code:
		return "code"
	default:
		return "other"
	}
}

// String implements fmt.Stringer.
func (c Category) String() string { return c.Label() }

// FileChange is one path in the staged change set.
type FileChange struct {
	Path     string // Destination path for renames
	From     string // Source path, set only for renames
	Status   Status
	Added    int
	Deleted  int
	Category Category
}

// Churn is the total number of touched lines.
func (c FileChange) Churn() int {
	return c.Added + c.Deleted
}

// Target renders the path as shown in message bodies, "from -> to" for renames.
func (c FileChange) Target() string {
	if c.Status == Renamed && c.From != "" {
		return c.From + " -> " + c.Path
	}
	return c.Path
}
