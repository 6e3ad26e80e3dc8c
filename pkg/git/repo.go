package git

import (
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// RepoRoot returns the top-level directory of the work tree containing path.
func RepoRoot(path string) (string, error) {
	repo, err := open(path)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", scerrors.Wrapf(err, "no work tree for %s", path)
	}
	return wt.Filesystem.Root(), nil
}

// RecentSubjects returns up to n first lines of the newest commit messages
// reachable from HEAD. An unborn branch yields no subjects.
func RecentSubjects(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	repo, err := open(path)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&gogit.LogOptions{Order: gogit.LogOrderCommitterTime})
	if err != nil {
		if scerrors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, scerrors.Wrap(err, "failed to read commit log")
	}
	defer iter.Close()

	subjects := make([]string, 0, n)
	err = iter.ForEach(func(c *object.Commit) error {
		subject, _, _ := strings.Cut(c.Message, "\n")
		if subject = strings.TrimSpace(subject); subject != "" {
			subjects = append(subjects, subject)
		}
		if len(subjects) == n {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, scerrors.Wrap(err, "failed to walk commit log")
	}
	return subjects, nil
}

func open(path string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if scerrors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, scerrors.Newf("not a git repository: %s", path)
		}
		return nil, scerrors.Wrapf(err, "failed to open repository at %s", path)
	}
	return repo, nil
}
