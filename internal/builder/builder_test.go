package builder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralt/aurbuild/internal/models"
)

// writeScript creates an executable shell script standing in for makepkg
// or repo-add.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

func TestPrintSrcinfo(t *testing.T) {
	tmpDir := t.TempDir()
	tool := writeScript(t, tmpDir, "makepkg", `echo "pkgbase = $(basename "$PWD")"; echo "carch = $CARCH"`)

	pkgDir := filepath.Join(tmpDir, "foo")
	if err := os.Mkdir(pkgDir, 0755); err != nil {
		t.Fatal(err)
	}

	m := NewMakepkg(models.Config{Makepkg: tool, CArch: "riscv64"})
	out, err := m.PrintSrcinfo(context.Background(), pkgDir)
	if err != nil {
		t.Fatalf("PrintSrcinfo failed: %v", err)
	}

	if !strings.Contains(out, "pkgbase = foo") {
		t.Errorf("output %q was not produced in the package directory", out)
	}
	if !strings.Contains(out, "carch = riscv64") {
		t.Errorf("output %q did not see the configured CARCH", out)
	}
}

func TestPrintSrcinfoFailure(t *testing.T) {
	tmpDir := t.TempDir()
	tool := writeScript(t, tmpDir, "makepkg", "echo 'PKGBUILD is broken' >&2\nexit 4\n")

	m := NewMakepkg(models.Config{Makepkg: tool})
	_, err := m.PrintSrcinfo(context.Background(), tmpDir)
	if err == nil {
		t.Fatal("expected an error")
	}

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error %v is not a *ToolError", err)
	}
	if !strings.Contains(toolErr.Stderr, "PKGBUILD is broken") {
		t.Errorf("stderr was not captured: %q", toolErr.Stderr)
	}
	if !strings.Contains(err.Error(), "PKGBUILD is broken") {
		t.Errorf("error message %q does not include diagnostics", err.Error())
	}
}

func TestRefreshVersionCleansBuildDir(t *testing.T) {
	tmpDir := t.TempDir()
	buildDir := filepath.Join(tmpDir, "build")
	tool := writeScript(t, tmpDir, "makepkg", `mkdir -p "$BUILDDIR/$(basename "$PWD")/src"; echo noise`)

	pkgDir := filepath.Join(tmpDir, "foo-git")
	if err := os.Mkdir(pkgDir, 0755); err != nil {
		t.Fatal(err)
	}

	m := NewMakepkg(models.Config{Makepkg: tool, BuildDir: buildDir})
	if err := m.RefreshVersion(context.Background(), pkgDir); err != nil {
		t.Fatalf("RefreshVersion failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(buildDir, "foo-git")); !os.IsNotExist(err) {
		t.Errorf("leftover build directory was not removed")
	}
}

func TestBuildAndAdd(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "calls.log")
	makepkg := writeScript(t, tmpDir, "makepkg", `echo "makepkg $*" >> "`+logPath+`"`)
	repoAdd := writeScript(t, tmpDir, "repo-add", `echo "repo-add $*" >> "`+logPath+`"`)

	var out bytes.Buffer
	m := NewMakepkg(models.Config{Makepkg: makepkg, RepoAdd: repoAdd, BuildArgs: []string{"-srcf"}})
	m.Stdout = &out
	m.Stderr = &out

	ctx := context.Background()
	if err := m.Build(ctx, tmpDir); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := m.Add(ctx, "/repo/custom.db", []string{"/repo/a.pkg.tar.zst", "/repo/b.pkg.tar.zst"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "makepkg -srcf\nrepo-add -R /repo/custom.db /repo/a.pkg.tar.zst /repo/b.pkg.tar.zst\n"
	if string(data) != want {
		t.Errorf("calls = %q, want %q", data, want)
	}
}

func TestBuildFailure(t *testing.T) {
	tmpDir := t.TempDir()
	tool := writeScript(t, tmpDir, "makepkg", "exit 1\n")

	m := NewMakepkg(models.Config{Makepkg: tool})
	m.Stdout = &bytes.Buffer{}
	m.Stderr = &bytes.Buffer{}

	var toolErr *ToolError
	if err := m.Build(context.Background(), tmpDir); !errors.As(err, &toolErr) {
		t.Fatalf("expected *ToolError, got %v", err)
	}
}
