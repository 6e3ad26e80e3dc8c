package changes

import (
	"path"
	"slices"
	"strings"
)

var (
	docExtensions    = []string{"md", "markdown", "rst", "txt", "adoc", "org"}
	testExtensions   = []string{"spec", "snap", "snap.new", "snap.old"}
	configExtensions = []string{"yml", "yaml", "json", "toml", "ini", "cfg", "conf", "lock", "env", "properties"}
	codeExtensions   = []string{
		"rs", "ts", "tsx", "js", "jsx", "py", "go", "rb", "java", "kt",
		"c", "cc", "cpp", "h", "hpp", "swift", "scala", "php",
	}
)

// rule matches a lowercased path and its lowercased extension.
type rule struct {
	category Category
	match    func(lower, ext string) bool
}

// rules are evaluated top-down; the first match wins.
var rules = []rule{
	{Docs, func(lower, ext string) bool {
		return strings.Contains(lower, "readme") || strings.Contains(lower, "docs/") ||
			slices.Contains(docExtensions, ext)
	}},
	{Tests, func(lower, ext string) bool {
		return strings.Contains(lower, "test") || slices.Contains(testExtensions, ext)
	}},
	{Config, func(lower, ext string) bool {
		return slices.Contains(configExtensions, ext) || strings.Contains(lower, "config")
	}},
	{Code, func(_, ext string) bool {
		return slices.Contains(codeExtensions, ext)
	}},
}

// Classify assigns p to exactly one category. It is case-insensitive and
// never fails; paths matching no rule are Other.
func Classify(p string) Category {
	lower := strings.ToLower(p)
	ext := extension(lower)

	for _, r := range rules {
		if r.match(lower, ext) {
			return r.category
		}
	}
	return Other
}

// extension returns the text after the last dot of the final path segment,
// or "" when there is none.
func extension(p string) string {
	base := path.Base(p)
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return base[i+1:]
}
