package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "javelin.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[engine]
max-frame-depth = 512

[profile]
enabled = true
path = "custom.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Engine.MaxFrameDepth != 512 {
		t.Errorf("MaxFrameDepth = %d, want 512", m.Engine.MaxFrameDepth)
	}
	if !m.Engine.InlineFieldAccessors {
		t.Error("unset key should keep its default")
	}
	if !m.Profile.Enabled || m.Profile.Path != "custom.db" {
		t.Errorf("profile = %+v, want enabled with custom.db", m.Profile)
	}
	want, _ := filepath.Abs(dir)
	if m.Dir != want {
		t.Errorf("Dir = %q, want %q", m.Dir, want)
	}
}

func TestLoadRejectsNonPositiveDepth(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[engine]
max-frame-depth = -1
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Engine.MaxFrameDepth != 2048 {
		t.Errorf("MaxFrameDepth = %d, want the default 2048", m.Engine.MaxFrameDepth)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("loading an empty directory should fail")
	}
}

func TestLoadBadToml(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[engine\n")
	if _, err := Load(dir); err == nil {
		t.Error("malformed file should fail to parse")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[log]
verbosity = 2
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("Verbosity = %d, want 2 from the ancestor manifest", m.Log.Verbosity)
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if m.Engine != d.Engine || m.Profile != d.Profile {
		t.Errorf("got %+v, want pure defaults", m)
	}
}
