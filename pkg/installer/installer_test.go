package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeCopy, "copy": ModeCopy, "symlink": ModeSymlink} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("hardlink")
	assert.Error(t, err)
}

func TestInstallCopy(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa")
	dest := filepath.Join(t.TempDir(), ".claude", "skills")

	res, err := localInstaller(t, root).Install(context.Background(), Request{Skill: "utoipa", Dest: dest})
	require.NoError(t, err)

	target := filepath.Join(dest, "utoipa")
	assert.Equal(t, "utoipa", res.Name)
	assert.Equal(t, target, res.Path)
	assert.Equal(t, ModeCopy, res.Mode)
	assert.Equal(t, "1.0.0", res.Ref)
	assert.Equal(t, []string{"SKILL.md", "references/guide.md"}, res.Files)
	assert.True(t, strings.HasPrefix(res.Digest, DigestPrefix))

	info, err := os.Lstat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "# Guide\n", readFile(t, filepath.Join(target, "references", "guide.md")))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directories must not remain")
	assert.Equal(t, "utoipa", entries[0].Name())
}

func TestInstallNotFound(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa")

	_, err := localInstaller(t, root).Install(context.Background(), Request{Skill: "solid-js", Dest: t.TempDir()})
	require.Error(t, err)
	assert.True(t, sources.IsNotFound(err))
}

func TestInstallRequiresDestination(t *testing.T) {
	_, err := New().Install(context.Background(), Request{Skill: "utoipa"})
	assert.Error(t, err)
}

func TestInstallExistingTarget(t *testing.T) {
	root := t.TempDir()
	src := writeSkill(t, root, "utoipa")
	dest := t.TempDir()
	inst := localInstaller(t, root)
	ctx := context.Background()

	_, err := inst.Install(ctx, Request{Skill: "utoipa", Dest: dest})
	require.NoError(t, err)

	_, err = inst.Install(ctx, Request{Skill: "utoipa", Dest: dest})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyInstalled))

	require.NoError(t, os.WriteFile(filepath.Join(src, "references", "guide.md"), []byte("# Guide v2\n"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(src, "SKILL.md")))
	require.NoError(t, os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("---\nname: utoipa\ndescription: Updated\n---\n\nBody\n"), 0o644))

	res, err := inst.Install(ctx, Request{Skill: "utoipa", Dest: dest, Force: true})
	require.NoError(t, err)
	assert.Equal(t, "# Guide v2\n", readFile(t, filepath.Join(res.Path, "references", "guide.md")))
	assert.Contains(t, readFile(t, filepath.Join(res.Path, "SKILL.md")), "Updated")
}

func TestInstallDryRun(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa")
	dest := filepath.Join(t.TempDir(), "skills")

	res, err := localInstaller(t, root).Install(context.Background(), Request{Skill: "utoipa", Dest: dest, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.NotEmpty(t, res.Digest)
	assert.Len(t, res.Files, 2)

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestInstallExcludes(t *testing.T) {
	root := t.TempDir()
	src := writeSkill(t, root, "utoipa")
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "config"), []byte("[core]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".DS_Store"), []byte{0}, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes", "draft.md"), []byte("wip\n"), 0o644))

	res, err := localInstaller(t, root).Install(context.Background(), Request{
		Skill:   "utoipa",
		Dest:    t.TempDir(),
		Exclude: []string{"notes/**"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SKILL.md", "references/guide.md"}, res.Files)
	assert.NoDirExists(t, filepath.Join(res.Path, ".git"))
	assert.NoFileExists(t, filepath.Join(res.Path, ".DS_Store"))
	assert.NoDirExists(t, filepath.Join(res.Path, "notes"))

	_, err = localInstaller(t, root).Install(context.Background(), Request{
		Skill:   "utoipa",
		Dest:    t.TempDir(),
		Exclude: []string{"[unclosed"},
	})
	assert.Error(t, err)
}

func TestInstallSymlinkLocal(t *testing.T) {
	root := t.TempDir()
	src := writeSkill(t, root, "utoipa")
	dest := t.TempDir()

	res, err := localInstaller(t, root).Install(context.Background(), Request{Skill: "utoipa", Dest: dest, Mode: ModeSymlink})
	require.NoError(t, err)
	assert.Equal(t, ModeSymlink, res.Mode)

	link, err := os.Readlink(res.Path)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(src)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(link)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(filepath.Join(src, "references", "extra.md"), []byte("# Extra\n"), 0o644))
	assert.FileExists(t, filepath.Join(res.Path, "references", "extra.md"))
}

func TestInstallSymlinkRemoteUsesCache(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "solid-js")
	cache := filepath.Join(t.TempDir(), "cache")
	dest := t.TempDir()

	inst := New(WithResolver(sources.NewResolver(&remoteSource{root: root})), WithCacheDir(cache))
	res, err := inst.Install(context.Background(), Request{Skill: "solid-js", Dest: dest, Mode: ModeSymlink})
	require.NoError(t, err)
	assert.Equal(t, "https://registry.example.com", res.Origin)
	assert.Equal(t, "2.0.0", res.Ref)

	link, err := os.Readlink(res.Path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "solid-js"), link)
	assert.FileExists(t, filepath.Join(cache, "solid-js", "SKILL.md"))

	noCache := New(WithResolver(sources.NewResolver(&remoteSource{root: root})))
	_, err = noCache.Install(context.Background(), Request{Skill: "solid-js", Dest: t.TempDir(), Mode: ModeSymlink})
	assert.Error(t, err)
}

func TestInstallReplacesSymlinkWithCopy(t *testing.T) {
	root := t.TempDir()
	src := writeSkill(t, root, "utoipa")
	dest := t.TempDir()
	inst := localInstaller(t, root)
	ctx := context.Background()

	_, err := inst.Install(ctx, Request{Skill: "utoipa", Dest: dest, Mode: ModeSymlink})
	require.NoError(t, err)

	res, err := inst.Install(ctx, Request{Skill: "utoipa", Dest: dest, Force: true})
	require.NoError(t, err)

	info, err := os.Lstat(res.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(src, "SKILL.md"))

	res, err = inst.Install(ctx, Request{Skill: "utoipa", Dest: dest, Mode: ModeSymlink, Force: true})
	require.NoError(t, err)
	info, err = os.Lstat(res.Path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
}

func TestInstallDestinationNotWritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	writeSkill(t, root, "utoipa")
	dest := t.TempDir()
	require.NoError(t, os.Chmod(dest, 0o555))
	t.Cleanup(func() { os.Chmod(dest, 0o755) })

	_, err := localInstaller(t, root).Install(context.Background(), Request{Skill: "utoipa", Dest: dest})
	require.Error(t, err)
	assert.True(t, os.IsPermission(errors.Cause(err)))
	assert.NoDirExists(t, filepath.Join(dest, "utoipa"))
}

func TestInstallAll(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa")
	writeSkill(t, root, "solid-js")
	dest := t.TempDir()
	inst := localInstaller(t, root, WithConcurrency(2))

	results, err := inst.InstallAll(context.Background(), []Request{
		{Skill: "utoipa", Dest: dest},
		{Skill: "missing-skill", Dest: dest},
		{Skill: "solid-js", Dest: dest},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-skill")
	require.Len(t, results, 2)
	assert.Equal(t, "utoipa", results[0].Name)
	assert.Equal(t, "solid-js", results[1].Name)
	assert.DirExists(t, filepath.Join(dest, "utoipa"))
	assert.DirExists(t, filepath.Join(dest, "solid-js"))

	_, err = inst.InstallAll(context.Background(), []Request{
		{Skill: "utoipa", Dest: dest},
		{Skill: "utoipa", Dest: dest},
	})
	assert.Error(t, err)
}

func TestInstallWithSourceSpecifier(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa")

	res, err := New().Install(context.Background(), Request{Skill: "utoipa", Source: root, Dest: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, root, res.Origin)
}

func TestDigest(t *testing.T) {
	a := writeSkill(t, t.TempDir(), "utoipa")
	b := writeSkill(t, t.TempDir(), "utoipa")

	da, files, err := DigestDir(a)
	require.NoError(t, err)
	db, _, err := DigestDir(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Equal(t, []string{"SKILL.md", "references/guide.md"}, files)

	require.NoError(t, os.WriteFile(filepath.Join(b, "references", "guide.md"), []byte("# Changed\n"), 0o644))
	db, _, err = DigestDir(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)

	require.NoError(t, os.Rename(filepath.Join(a, "references", "guide.md"), filepath.Join(a, "references", "other.md")))
	renamed, _, err := DigestDir(a)
	require.NoError(t, err)
	assert.NotEqual(t, da, renamed)
}
