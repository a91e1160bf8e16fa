// Package cache keeps each package's .SRCINFO in sync with its PKGBUILD.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ralt/aurbuild/internal/builder"
	"github.com/ralt/aurbuild/internal/models"
	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// PKGBUILD is the source definition file of a package base
	PKGBUILD = "PKGBUILD"
	// SRCINFO is the cached description file of a package base
	SRCINFO = ".SRCINFO"
)

// Cache reads and regenerates the .SRCINFO files below a root directory.
type Cache struct {
	root    string
	builder builder.Builder
}

// New creates a Cache for the package bases under root.
func New(root string, b builder.Builder) *Cache {
	return &Cache{root: root, builder: b}
}

// Dir returns the directory of pkgbase.
func (c *Cache) Dir(pkgbase string) string {
	return filepath.Join(c.root, pkgbase)
}

// Stale reports whether the .SRCINFO of pkgbase is missing or strictly
// older than its PKGBUILD.
func (c *Cache) Stale(pkgbase string) bool {
	dir := c.Dir(pkgbase)
	return modTime(filepath.Join(dir, SRCINFO)).Before(modTime(filepath.Join(dir, PKGBUILD)))
}

// modTime returns the modification time of path, or the zero time when it
// does not exist.
func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Read returns the description of pkgbase, regenerating it with the builder
// when it is stale. With store set, a regenerated description is written
// back to the .SRCINFO file.
func (c *Cache) Read(ctx context.Context, pkgbase string, store bool) (string, error) {
	dir := c.Dir(pkgbase)

	if !c.Stale(pkgbase) {
		data, err := os.ReadFile(filepath.Join(dir, SRCINFO))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", models.NewError(models.ErrFileOp, pkgbase, err)
		}
	}

	logrus.WithField("pkgbase", pkgbase).Debug("Regenerating .SRCINFO")
	text, err := c.builder.PrintSrcinfo(ctx, dir)
	if err != nil {
		return "", models.NewError(models.ErrBuildTool, pkgbase, fmt.Errorf("could not generate %s: %w", SRCINFO, err))
	}

	if store {
		if err := utils.WriteFile(filepath.Join(dir, SRCINFO), []byte(text), 0644); err != nil {
			return "", models.NewError(models.ErrFileOp, pkgbase, err)
		}
	}
	return text, nil
}

// Update regenerates and stores the .SRCINFO of pkgbase unconditionally.
func (c *Cache) Update(ctx context.Context, pkgbase string) error {
	dir := c.Dir(pkgbase)
	text, err := c.builder.PrintSrcinfo(ctx, dir)
	if err != nil {
		return models.NewError(models.ErrBuildTool, pkgbase, fmt.Errorf("could not update %s: %w", SRCINFO, err))
	}
	if err := utils.WriteFile(filepath.Join(dir, SRCINFO), []byte(text), 0644); err != nil {
		return models.NewError(models.ErrFileOp, pkgbase, err)
	}
	return nil
}

// Load returns the parsed description of pkgbase, refreshing the version of
// VCS packages first.
func (c *Cache) Load(ctx context.Context, pkgbase string) (*srcinfo.Base, error) {
	if srcinfo.IsVCS(pkgbase) {
		if err := c.builder.RefreshVersion(ctx, c.Dir(pkgbase)); err != nil {
			return nil, models.NewError(models.ErrBuildTool, pkgbase, fmt.Errorf("could not update %s: %w", PKGBUILD, err))
		}
	}

	return c.Parse(ctx, pkgbase)
}

// Parse returns the parsed description of pkgbase, regenerating and storing
// it first when stale.
func (c *Cache) Parse(ctx context.Context, pkgbase string) (*srcinfo.Base, error) {
	text, err := c.Read(ctx, pkgbase, true)
	if err != nil {
		return nil, err
	}

	base, err := srcinfo.ParseString(text)
	if err != nil {
		var perr *srcinfo.ParseError
		if errors.As(err, &perr) {
			perr.Filename = filepath.Join(pkgbase, SRCINFO)
		}
		return nil, models.NewError(models.ErrParse, pkgbase, err)
	}
	return base, nil
}

// LoadAll loads pkgbases with at most jobs loads in flight. Every package is
// attempted; the returned slice holds nil for the ones that failed and the
// error joins all failures.
func (c *Cache) LoadAll(ctx context.Context, pkgbases []string, jobs int) ([]*srcinfo.Base, error) {
	bases := make([]*srcinfo.Base, len(pkgbases))
	errs := make([]error, len(pkgbases))
	progress := utils.NewProgress(len(pkgbases), "Reading metadata")

	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, pkgbase := range pkgbases {
		g.Go(func() error {
			defer progress.Done()
			bases[i], errs[i] = c.Load(ctx, pkgbase)
			return nil
		})
	}
	g.Wait()
	progress.Finish()

	return bases, errors.Join(errs...)
}
