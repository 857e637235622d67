package job

import (
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/teranos/warden/errors"
)

// Provenance records the git origin of submitted work so a run can be traced
// back to the code that produced it.
type Provenance struct {
	Remote string `json:"remote,omitempty"` // origin URL, "" when the repo has no origin
	Commit string `json:"commit,omitempty"` // HEAD commit hash at submission
	Dirty  bool   `json:"dirty,omitempty"`  // uncommitted changes in the worktree
}

// DetectProvenance inspects the git repository enclosing dir, walking up
// parent directories the way git itself does. Returns nil without error when
// dir is not inside a repository or the repository has no commits yet.
func DetectProvenance(dir string) (*Provenance, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "open git repository at %s", dir)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "resolve HEAD")
	}

	prov := &Provenance{Commit: head.Hash().String()}

	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			prov.Remote = urls[0]
		}
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			prov.Dirty = !status.IsClean()
		}
	}

	return prov, nil
}
