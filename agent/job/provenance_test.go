package job

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepoWithCommit(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.py"), []byte("print('hi')\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("train.py")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "warden-test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir, repo
}

func TestDetectProvenanceOutsideRepo(t *testing.T) {
	prov, err := DetectProvenance(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, prov)
}

func TestDetectProvenanceEmptyRepo(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	prov, err := DetectProvenance(dir)
	require.NoError(t, err)
	assert.Nil(t, prov, "a repo without commits carries no provenance")
}

func TestDetectProvenance(t *testing.T) {
	dir, repo := initRepoWithCommit(t)

	prov, err := DetectProvenance(dir)
	require.NoError(t, err)
	require.NotNil(t, prov)
	assert.Len(t, prov.Commit, 40)
	assert.False(t, prov.Dirty)
	assert.Empty(t, prov.Remote, "no origin configured")

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{"https://example.com/demo.git"},
	})
	require.NoError(t, err)

	prov, err = DetectProvenance(dir)
	require.NoError(t, err)
	require.NotNil(t, prov)
	assert.Equal(t, "https://example.com/demo.git", prov.Remote)
}

func TestDetectProvenanceDirty(t *testing.T) {
	dir, _ := initRepoWithCommit(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("wip\n"), 0o644))

	prov, err := DetectProvenance(dir)
	require.NoError(t, err)
	require.NotNil(t, prov)
	assert.True(t, prov.Dirty)
}

func TestDetectProvenanceFromSubdirectory(t *testing.T) {
	dir, _ := initRepoWithCommit(t)
	sub := filepath.Join(dir, "experiments", "run1")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	prov, err := DetectProvenance(sub)
	require.NoError(t, err)
	require.NotNil(t, prov, "detection should walk up to the enclosing repo")
	assert.Len(t, prov.Commit, 40)
}
