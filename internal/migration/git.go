package migration

import (
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"legacymod/internal/errs"
)

// GitCheckpointer commits the project worktree after a task that asked
// for it (metadata.git: true) completes, giving an operator a rollback
// point without the engine itself understanding version control beyond
// "stage everything, commit with a message." If projectRoot isn't a git
// repository, NewGitCheckpointer reports that up front rather than
// silently no-op-ing per commit.
type GitCheckpointer struct {
	repo       *git.Repository
	authorName string
	authorMail string
}

// NewGitCheckpointer opens the git repository at projectRoot. Returns
// (nil, nil) when projectRoot is not a git repository, so callers can
// treat checkpointing as optionally disabled rather than an error.
func NewGitCheckpointer(projectRoot, authorName, authorMail string) (*GitCheckpointer, error) {
	repo, err := git.PlainOpen(projectRoot)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, nil
		}
		return nil, errs.IOWrap(err, "opening git repository at %s", projectRoot)
	}
	return &GitCheckpointer{repo: repo, authorName: authorName, authorMail: authorMail}, nil
}

// Commit stages every tracked and untracked change in the worktree and
// commits it with message. A worktree with nothing to commit is not an
// error: it simply produces no commit.
func (c *GitCheckpointer) Commit(message string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return errs.IOWrap(err, "opening git worktree")
	}
	if _, err := wt.Add("."); err != nil {
		return errs.IOWrap(err, "staging changes for checkpoint commit")
	}
	status, err := wt.Status()
	if err != nil {
		return errs.IOWrap(err, "reading worktree status")
	}
	if status.IsClean() {
		return nil
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.authorName,
			Email: c.authorMail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return errs.IOWrap(err, "committing checkpoint")
	}
	return nil
}
