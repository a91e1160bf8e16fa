// Package scheduler decides which package bases need a rebuild, orders them
// and drives the builds.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/ralt/aurbuild/internal/builder"
	"github.com/ralt/aurbuild/internal/cache"
	"github.com/ralt/aurbuild/internal/graph"
	"github.com/ralt/aurbuild/internal/models"
	"github.com/ralt/aurbuild/internal/repository"
	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/version"
	"github.com/sirupsen/logrus"
)

// Scheduler plans and runs builds for the package tree of a configuration.
type Scheduler struct {
	config  models.Config
	cache   *cache.Cache
	builder builder.Builder
	updater builder.Updater

	// Out receives the plan of dry runs and the separators between builds
	Out io.Writer
}

// New creates a Scheduler. cfg should have gone through Resolve.
func New(cfg models.Config, b builder.Builder, u builder.Updater) *Scheduler {
	return &Scheduler{
		config:  cfg,
		cache:   cache.New(cfg.RootDir, b),
		builder: b,
		updater: u,
		Out:     os.Stdout,
	}
}

// Resolve returns cfg with the local databases looked up from pacman.conf,
// unless given explicitly, and PKGDEST defaulting to the directory of the
// first database.
func Resolve(cfg models.Config) (models.Config, error) {
	dbs := append([]string(nil), cfg.Databases...)
	if len(dbs) == 0 {
		found, err := repository.LocalDatabases(cfg.PacmanConf)
		if err != nil {
			return cfg, models.NewError(models.ErrInvalidConfig, "", err)
		}
		dbs = found
	}
	if len(dbs) == 0 {
		return cfg, models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("no local repository found in %s", cfg.PacmanConf))
	}

	cfg.Databases = dbs
	if cfg.PkgDest == "" {
		cfg.PkgDest = filepath.Dir(dbs[0])
	}
	return cfg, nil
}

// Plan is the outcome of the preparation phase.
type Plan struct {
	// Order lists the bases to build, dependencies first
	Order []*srcinfo.Base
	// Skipped lists the bases whose packages are all published and current
	Skipped []*srcinfo.Base

	// Err joins the preparation failures. Bases that failed, and the ones
	// depending on them, are left out of Order.
	Err error

	graph *graph.Graph
	// package name -> database it was previously published to
	found map[string]string
}

// Plan prepares the metadata of the selected packages, drops the ones that
// are already current in a local database and orders the rest.
func (s *Scheduler) Plan(ctx context.Context, names []string, devel *bool) (*Plan, error) {
	pkgbases, err := Select(s.config.RootDir, names, devel)
	if err != nil {
		return nil, err
	}

	loaded, prepErr := s.cache.LoadAll(ctx, pkgbases, s.config.Jobs)
	failed := make(map[string]bool)
	bases := make([]*srcinfo.Base, 0, len(loaded))
	for i, base := range loaded {
		if base == nil {
			failed[pkgbases[i]] = true
			continue
		}
		bases = append(bases, base)
	}

	idx, err := repository.Open(s.config.Databases)
	if err != nil {
		return nil, models.NewError(models.ErrInvalidConfig, "", err)
	}

	plan := &Plan{Err: prepErr, found: make(map[string]string)}
	var working []string
	for _, base := range bases {
		if s.current(idx, base, plan.found) {
			logrus.WithField("pkgbase", base.Name).Infof("Skipping %s: up-to-date", base.Version())
			plan.Skipped = append(plan.Skipped, base)
			continue
		}
		working = append(working, base.Name)
	}

	plan.graph, err = graph.New(bases, s.config.CArch)
	if err != nil {
		return nil, errors.Join(models.NewError(models.ErrInvalidConfig, "", err), prepErr)
	}
	if len(failed) > 0 {
		working = s.unblocked(plan.graph, bases, working, failed)
	}
	plan.Order, err = plan.graph.Order(working)
	if err != nil {
		var cycle *graph.CycleError
		if errors.As(err, &cycle) {
			return nil, errors.Join(models.NewError(models.ErrCycle, cycle.Path[0], err), prepErr)
		}
		return nil, errors.Join(err, prepErr)
	}

	return plan, nil
}

// unblocked drops from working the bases requiring a package base that
// failed to prepare, and then the bases depending on a dropped one.
func (s *Scheduler) unblocked(g *graph.Graph, bases []*srcinfo.Base, working []string, failed map[string]bool) []string {
	blocked := make(map[string]bool)
	for _, base := range bases {
		for _, c := range graph.Requirements(base, s.config.CArch) {
			if failed[c.Name] {
				blocked[base.Name] = true
				break
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, name := range working {
			if blocked[name] {
				continue
			}
			for _, dep := range g.Dependencies(name) {
				if blocked[dep] {
					blocked[name] = true
					changed = true
					break
				}
			}
		}
	}

	kept := working[:0]
	for _, name := range working {
		if blocked[name] {
			logrus.WithField("pkgbase", name).Warn("Skipping: a dependency could not be prepared")
			continue
		}
		kept = append(kept, name)
	}
	return kept
}

// current reports whether every package of base is published at a version
// at least as new as the one base builds. Databases holding an older
// version are remembered in found.
func (s *Scheduler) current(idx *repository.Index, base *srcinfo.Base, found map[string]string) bool {
	ver := base.Version()
	all := true
	for _, name := range base.PackageNames() {
		upToDate := false
		for _, rec := range idx.Lookup(name) {
			if version.Compare(rec.Version, ver) >= 0 {
				upToDate = true
			} else {
				found[name] = rec.Database
			}
		}
		if !upToDate {
			all = false
		}
	}
	return all
}

// Execute builds the planned bases one after another and publishes their
// packages. The first failure aborts the remaining builds.
func (s *Scheduler) Execute(ctx context.Context, plan *Plan) error {
	if len(plan.Order) > 0 && len(s.config.Databases) == 0 {
		return models.NewError(models.ErrInvalidConfig, "", errors.New("no database to publish packages to"))
	}

	for i, base := range plan.Order {
		log := logrus.WithField("pkgbase", base.Name)
		log.Infof("Building %s (%d/%d)", base.Version(), i+1, len(plan.Order))

		if err := s.builder.Build(ctx, s.cache.Dir(base.Name)); err != nil {
			return models.NewError(models.ErrBuild, base.Name, err)
		}

		databases, archives := s.targets(base, plan.found)
		for _, db := range databases {
			log.Infof("Adding %d package(s) to %s", len(archives[db]), db)
			if err := s.updater.Add(ctx, db, archives[db]); err != nil {
				return models.NewError(models.ErrBuild, base.Name, err)
			}
		}

		fmt.Fprintln(s.Out, color.Gray.Sprint(strings.Repeat("#", 80)))
		fmt.Fprintln(s.Out)
	}
	return nil
}

// targets groups the package files of base by the database they go to,
// keeping the order in which databases first appear.
func (s *Scheduler) targets(base *srcinfo.Base, found map[string]string) ([]string, map[string][]string) {
	var databases []string
	archives := make(map[string][]string)

	for _, a := range base.Artifacts(s.config.PkgDest, s.config.PkgExt, s.config.CArch) {
		a.Database = found[a.Name]
		if a.Database == "" {
			a.Database = s.config.Databases[0]
		}
		if _, ok := archives[a.Database]; !ok {
			databases = append(databases, a.Database)
		}
		archives[a.Database] = append(archives[a.Database], a.Path)
	}
	return databases, archives
}

// Print writes the plan in build order.
func (s *Scheduler) Print(plan *Plan) {
	for _, base := range plan.Skipped {
		fmt.Fprintf(s.Out, "%s %s %s\n", color.Gray.Sprint("skip "), base.Name, base.Version())
	}
	for _, base := range plan.Order {
		line := fmt.Sprintf("%s %s %s", color.Green.Sprint("build"), base.Name, base.Version())
		databases, _ := s.targets(base, plan.found)
		for i, db := range databases {
			databases[i] = filepath.Base(db)
		}
		line += " into " + strings.Join(databases, ", ")
		if deps := plan.graph.Dependencies(base.Name); len(deps) > 0 {
			line += color.Gray.Sprintf(" (after %s)", strings.Join(deps, ", "))
		}
		fmt.Fprintln(s.Out, line)
	}
}

// Run plans and, unless dryRun is set, executes the build. Preparation
// failures are reported after the other bases were built.
func (s *Scheduler) Run(ctx context.Context, names []string, devel *bool, dryRun bool) error {
	plan, err := s.Plan(ctx, names, devel)
	if err != nil {
		return err
	}

	if dryRun {
		s.Print(plan)
		return plan.Err
	}
	if len(plan.Order) == 0 {
		logrus.Info("Nothing to build")
		return plan.Err
	}
	return errors.Join(s.Execute(ctx, plan), plan.Err)
}
