// Package upstream runs the per-package LATESTVER scripts to find releases
// newer than the packaged version.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/ralt/aurbuild/internal/builder"
	"github.com/ralt/aurbuild/internal/cache"
	"github.com/ralt/aurbuild/internal/models"
	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/utils"
	"github.com/ralt/aurbuild/internal/version"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Script is the executable, next to the PKGBUILD, that prints the upstream
// versions of a package one per line. Lines may carry a "prefix:" which is
// ignored.
const Script = "LATESTVER"

// Result lists the upstream versions newer than the packaged one.
type Result struct {
	Pkgbase string
	Version string // packaged pkgver-pkgrel
	Newer   []string
}

// Checker runs LATESTVER scripts.
type Checker struct {
	cache *cache.Cache
	jobs  int
}

// New creates a Checker running at most jobs scripts at once.
func New(root string, b builder.Builder, jobs int) *Checker {
	return &Checker{cache: cache.New(root, b), jobs: jobs}
}

// ParseVersions extracts the versions printed by a LATESTVER script.
func ParseVersions(output string) []string {
	var versions []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if _, after, found := strings.Cut(line, ":"); found {
			line = strings.TrimSpace(after)
		}
		if line != "" {
			versions = append(versions, line)
		}
	}
	return versions
}

// Check runs the script of pkgbase. It returns nil without error when the
// package has no script.
func (c *Checker) Check(ctx context.Context, pkgbase string) (*Result, error) {
	dir := c.cache.Dir(pkgbase)
	script := filepath.Join(dir, Script)

	if !utils.IsRegular(script) {
		// VCS packages follow their branch, so there is nothing to check
		if !srcinfo.IsVCS(pkgbase) {
			logrus.WithField("pkgbase", pkgbase).Warnf("%s does not exist", script)
		}
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, script)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, models.NewError(models.ErrBuildTool, pkgbase,
			&builder.ToolError{Tool: script, Dir: dir, Err: err, Stderr: stderr.String()})
	}

	base, err := c.cache.Parse(ctx, pkgbase)
	if err != nil {
		return nil, err
	}

	result := &Result{Pkgbase: pkgbase, Version: base.Pkgver + "-" + base.Pkgrel}
	for _, v := range ParseVersions(stdout.String()) {
		if version.Compare(v, result.Version) > 0 {
			result.Newer = append(result.Newer, v)
		}
	}
	return result, nil
}

// CheckAll checks pkgbases concurrently and returns, in the order given, the
// packages with newer upstream versions. A failing script does not stop the
// others; all failures are returned joined.
func (c *Checker) CheckAll(ctx context.Context, pkgbases []string) ([]Result, error) {
	results := make([]*Result, len(pkgbases))
	errs := make([]error, len(pkgbases))
	progress := utils.NewProgress(len(pkgbases), "Checking upstream")

	var g errgroup.Group
	if c.jobs > 0 {
		g.SetLimit(c.jobs)
	}
	for i, pkgbase := range pkgbases {
		g.Go(func() error {
			defer progress.Done()
			results[i], errs[i] = c.Check(ctx, pkgbase)
			return nil
		})
	}
	g.Wait()
	progress.Finish()

	var out []Result
	for _, r := range results {
		if r != nil && len(r.Newer) > 0 {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}

// Print writes each result as the package and its version followed by the
// newer versions, indented below.
func Print(w io.Writer, results []Result) {
	for _, r := range results {
		fmt.Fprintf(w, "%s %s\n", color.Cyan.Sprint(r.Pkgbase), r.Version)
		indent := strings.Repeat(" ", len(r.Pkgbase))
		for _, v := range r.Newer {
			fmt.Fprintf(w, "%s %s\n", indent, color.Green.Sprint(v))
		}
	}
}
