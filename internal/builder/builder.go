// Package builder drives the external makepkg and repo-add executables.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ralt/aurbuild/internal/models"
	"github.com/sirupsen/logrus"
)

// Builder is the subset of makepkg the pipeline relies on. dir is always a
// package base directory containing a PKGBUILD.
type Builder interface {
	// PrintSrcinfo returns the .SRCINFO description of the PKGBUILD in dir
	PrintSrcinfo(ctx context.Context, dir string) (string, error)

	// RefreshVersion lets a VCS PKGBUILD rewrite its own pkgver
	RefreshVersion(ctx context.Context, dir string) error

	// Build builds the packages of dir into PKGDEST
	Build(ctx context.Context, dir string) error
}

// Updater adds package files to a repository database.
type Updater interface {
	Add(ctx context.Context, database string, archives []string) error
}

// ToolError is returned when an external tool exits unsuccessfully.
type ToolError struct {
	Tool   string
	Args   []string
	Dir    string
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s failed in %s: %v", e.Tool, strings.Join(e.Args, " "), e.Dir, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Makepkg implements Builder and Updater by running makepkg and repo-add.
type Makepkg struct {
	config models.Config

	// Output of build and repo-add runs, defaults to the process streams
	Stdout io.Writer
	Stderr io.Writer
}

// NewMakepkg creates a Makepkg driven by cfg.
func NewMakepkg(cfg models.Config) *Makepkg {
	return &Makepkg{
		config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// environ exports the makepkg variables of the configuration.
func (m *Makepkg) environ(buildDir string) []string {
	env := os.Environ()
	set := func(key, value string) {
		if value != "" {
			env = append(env, key+"="+value)
		}
	}
	set("CARCH", m.config.CArch)
	set("SRCDEST", m.config.SrcDest)
	set("PKGDEST", m.config.PkgDest)
	set("PKGEXT", m.config.PkgExt)
	set("SRCEXT", m.config.SrcExt)
	set("SRCPKGDEST", m.config.SrcPkgDest)
	set("BUILDDIR", buildDir)
	return env
}

// PrintSrcinfo runs makepkg --printsrcinfo.
func (m *Makepkg) PrintSrcinfo(ctx context.Context, dir string) (string, error) {
	args := []string{"--printsrcinfo"}
	cmd := exec.CommandContext(ctx, m.config.Makepkg, args...)
	cmd.Dir = dir
	cmd.Env = m.environ(m.config.BuildDir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.Debugf("Running %s %s in %s", m.config.Makepkg, strings.Join(args, " "), dir)
	if err := cmd.Run(); err != nil {
		return "", &ToolError{Tool: m.config.Makepkg, Args: args, Dir: dir, Err: err, Stderr: stderr.String()}
	}
	return stdout.String(), nil
}

// RefreshVersion runs the source preparation steps of makepkg, which
// update pkgver in place for VCS packages. The scratch build directory is
// removed afterwards.
func (m *Makepkg) RefreshVersion(ctx context.Context, dir string) error {
	args := []string{"--nodeps", "--skipinteg", "--noprepare", "--nobuild"}
	buildDir := m.config.BuildDir
	if buildDir == "" {
		buildDir = filepath.Join(os.TempDir(), "makepkg")
	}

	cmd := exec.CommandContext(ctx, m.config.Makepkg, args...)
	cmd.Dir = dir
	cmd.Env = m.environ(buildDir)

	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	logrus.Debugf("Refreshing pkgver in %s", dir)
	err := cmd.Run()

	if rmErr := os.RemoveAll(filepath.Join(buildDir, filepath.Base(dir))); rmErr != nil {
		logrus.Warnf("Failed to remove leftover build directory: %v", rmErr)
	}

	if err != nil {
		return &ToolError{Tool: m.config.Makepkg, Args: args, Dir: dir, Err: err, Stderr: stderr.String()}
	}
	return nil
}

// Build runs makepkg in build mode, streaming its output.
func (m *Makepkg) Build(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, m.config.Makepkg, m.config.BuildArgs...)
	cmd.Dir = dir
	cmd.Env = m.environ(m.config.BuildDir)
	cmd.Stdin = os.Stdin
	cmd.Stdout = m.Stdout
	cmd.Stderr = m.Stderr

	logrus.Debugf("Running %s %s in %s", m.config.Makepkg, strings.Join(m.config.BuildArgs, " "), dir)
	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: m.config.Makepkg, Args: m.config.BuildArgs, Dir: dir, Err: err}
	}
	return nil
}

// Add runs repo-add -R, which also removes the previous package files.
func (m *Makepkg) Add(ctx context.Context, database string, archives []string) error {
	args := append([]string{"-R", database}, archives...)
	cmd := exec.CommandContext(ctx, m.config.RepoAdd, args...)
	cmd.Stdout = m.Stdout
	cmd.Stderr = m.Stderr

	logrus.Debugf("Running %s %s", m.config.RepoAdd, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: m.config.RepoAdd, Args: args, Dir: filepath.Dir(database), Err: err}
	}
	return nil
}
