package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ralt/aurbuild/internal/models"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := load(Flags{RootDir: root}, env(map[string]string{"XDG_CONFIG_HOME": t.TempDir()}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := Defaults(root)
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.CArch == "" {
		t.Error("CArch should default to the machine name")
	}
	if cfg.SrcPkgDest != root {
		t.Errorf("SrcPkgDest = %q, want the root %q", cfg.SrcPkgDest, root)
	}
}

func TestLoadPrecedence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
carch = "aarch64"
pkgext = ".pkg.tar.xz"
srcdest = "sources"
databases = ["repo/custom.db", "/srv/other.db"]
build_args = ["-sf", "--noconfirm"]
jobs = 3
`)

	cfg, err := load(Flags{RootDir: root, Jobs: 5}, env(map[string]string{
		"XDG_CONFIG_HOME": t.TempDir(),
		"CARCH":           "armv7h",
		"BUILDDIR":        "/var/tmp/build",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := Defaults(root)
	want.CArch = "armv7h"
	want.PkgExt = ".pkg.tar.xz"
	want.SrcDest = filepath.Join(root, "sources")
	want.Databases = []string{filepath.Join(root, "repo", "custom.db"), "/srv/other.db"}
	want.BuildArgs = []string{"-sf", "--noconfirm"}
	want.BuildDir = "/var/tmp/build"
	want.Jobs = 5

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadUserConfig(t *testing.T) {
	root := t.TempDir()
	configHome := t.TempDir()
	writeFile(t, filepath.Join(configHome, "aurbuild", "config.toml"), `pacman_conf = "/tmp/pacman.conf"`)

	cfg, err := load(Flags{RootDir: root}, env(map[string]string{"XDG_CONFIG_HOME": configHome}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.PacmanConf != "/tmp/pacman.conf" {
		t.Errorf("PacmanConf = %q", cfg.PacmanConf)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "jobs = ["},
		{"unknown key", `color = "always"`},
		{"zero jobs", "jobs = 0"},
		{"bad pkgext", `pkgext = ".zip"`},
		{"empty makepkg", `makepkg = ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeFile(t, path, tt.content)

			_, err := load(Flags{RootDir: t.TempDir(), ConfigFile: path}, env(nil))
			if !models.IsType(err, models.ErrInvalidConfig) {
				t.Errorf("expected an InvalidConfig error, got %v", err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := load(Flags{RootDir: t.TempDir(), ConfigFile: filepath.Join(t.TempDir(), "none.toml")}, env(nil))
	if !models.IsType(err, models.ErrInvalidConfig) {
		t.Errorf("expected an InvalidConfig error, got %v", err)
	}
}
