package git

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	return dir, repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, msg string, when time.Time) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(msg), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "Test", Email: "test@example.com", When: when}
	if _, err := wt.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestRepoRoot(t *testing.T) {
	dir, _ := initRepo(t)
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := RepoRoot(sub)
	if err != nil {
		t.Fatalf("RepoRoot() error = %v", err)
	}
	if got != dir {
		t.Errorf("RepoRoot() = %q, want %q", got, dir)
	}
}

func TestRepoRoot_NotARepo(t *testing.T) {
	if _, err := RepoRoot(t.TempDir()); err == nil {
		t.Error("RepoRoot() should fail outside a repository")
	}
}

func TestRecentSubjects(t *testing.T) {
	dir, repo := initRepo(t)
	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	commitFile(t, repo, dir, "a.txt", "Initial import", base)
	commitFile(t, repo, dir, "b.txt", "Add parser\n\n- details", base.Add(time.Minute))
	commitFile(t, repo, dir, "c.txt", "  Fix typo  \n", base.Add(2*time.Minute))

	got, err := RecentSubjects(dir, 2)
	if err != nil {
		t.Fatalf("RecentSubjects() error = %v", err)
	}
	want := []string{"Fix typo", "Add parser"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RecentSubjects() = %q, want %q", got, want)
	}

	all, _ := RecentSubjects(dir, 10)
	if len(all) != 3 {
		t.Errorf("RecentSubjects(10) returned %d subjects, want 3", len(all))
	}
}

func TestRecentSubjects_EmptyRepo(t *testing.T) {
	dir, _ := initRepo(t)

	got, err := RecentSubjects(dir, 6)
	if err != nil {
		t.Fatalf("RecentSubjects() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("RecentSubjects() = %q, want none", got)
	}

	if got, _ := RecentSubjects(dir, 0); got != nil {
		t.Errorf("RecentSubjects(0) = %q, want nil", got)
	}
}
