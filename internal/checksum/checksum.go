// Package checksum verifies the checksums declared for package sources and
// rewrites the PKGBUILD when they no longer match.
package checksum

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ralt/aurbuild/internal/builder"
	"github.com/ralt/aurbuild/internal/cache"
	"github.com/ralt/aurbuild/internal/models"
	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Skip is the checksum literal that disables verification of a source.
const Skip = "SKIP"

// entry pairs a source with one of its declared checksums.
type entry struct {
	source  srcinfo.Source
	algo    string
	literal string
}

// Repairer fixes stale checksums of the package bases below a root.
type Repairer struct {
	cache *cache.Cache
	jobs  int
	sem   *semaphore.Weighted

	Fetcher Fetcher
}

// New creates a Repairer fetching at most jobs sources at once.
func New(root string, b builder.Builder, jobs int) *Repairer {
	if jobs < 1 {
		jobs = 1
	}
	return &Repairer{
		cache:   cache.New(root, b),
		jobs:    jobs,
		sem:     semaphore.NewWeighted(int64(jobs)),
		Fetcher: &HTTPFetcher{Client: http.DefaultClient},
	}
}

// entries lists every checksummed source of base, skipping SKIP. Two
// sources declaring the same literal cannot be told apart in the PKGBUILD
// text and are reported as a conflict.
func entries(base *srcinfo.Base) ([]entry, error) {
	var out []entry
	seen := make(map[string]bool)

	for _, arch := range base.ArchSuffixes() {
		sources := base.Sources(arch)
		for _, algo := range srcinfo.ChecksumAlgorithms {
			for i, literal := range base.Get(srcinfo.ChecksumsKey(algo, arch)) {
				if strings.EqualFold(literal, Skip) || i >= len(sources) {
					continue
				}
				key := strings.ToLower(literal)
				if seen[key] {
					return nil, models.NewError(models.ErrChecksumConflict, base.Name,
						fmt.Errorf("%s declares checksum %s more than once", cache.PKGBUILD, literal))
				}
				seen[key] = true
				out = append(out, entry{source: sources[i], algo: algo, literal: literal})
			}
		}
	}
	return out, nil
}

// digest computes the checksum of one source.
func (r *Repairer) digest(ctx context.Context, dir string, e entry) (string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer r.sem.Release(1)

	rc, err := r.Fetcher.Open(ctx, dir, e.source)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	sum, err := utils.Digest(rc, e.algo)
	if err != nil {
		return "", fmt.Errorf("could not compute %s of %s: %w", e.algo, e.source.Filename, err)
	}
	return sum, nil
}

// Replacements returns the stale checksum literals of base mapped to the
// digests of the current sources. Nothing is fetched when the declared
// checksums conflict.
func (r *Repairer) Replacements(ctx context.Context, base *srcinfo.Base) (map[string]string, error) {
	list, err := entries(base)
	if err != nil {
		return nil, err
	}

	dir := r.cache.Dir(base.Name)
	sums := make([]string, len(list))
	errs := make([]error, len(list))

	var g errgroup.Group
	for i, e := range list {
		g.Go(func() error {
			sums[i], errs[i] = r.digest(ctx, dir, e)
			return nil
		})
	}
	g.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, models.NewError(models.ErrFileOp, base.Name, err)
	}

	replacements := make(map[string]string)
	for i, e := range list {
		if sums[i] != strings.ToLower(e.literal) {
			logrus.WithField("pkgbase", base.Name).Infof("%s: %ssum %s -> %s", e.source.Filename, e.algo, e.literal, sums[i])
			replacements[e.literal] = sums[i]
		}
	}
	return replacements, nil
}

// Repair fixes the checksums of pkgbase and regenerates its .SRCINFO when
// the PKGBUILD changed. It returns the number of substitutions made.
func (r *Repairer) Repair(ctx context.Context, pkgbase string) (int, error) {
	base, err := r.cache.Parse(ctx, pkgbase)
	if err != nil {
		return 0, err
	}

	replacements, err := r.Replacements(ctx, base)
	if err != nil {
		return 0, err
	}

	count := 0
	if len(replacements) > 0 {
		path := filepath.Join(r.cache.Dir(pkgbase), cache.PKGBUILD)
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, models.NewError(models.ErrFileOp, pkgbase, err)
		}

		var text string
		text, count = Substitute(string(data), replacements)
		if err := utils.WriteFile(path, []byte(text), 0644); err != nil {
			return 0, models.NewError(models.ErrFileOp, pkgbase, err)
		}
	}

	if r.cache.Stale(pkgbase) {
		if err := r.cache.Update(ctx, pkgbase); err != nil {
			return count, err
		}
	}
	return count, nil
}

// RepairAll repairs every package base concurrently. A failing package does
// not stop the others; all failures are returned joined.
func (r *Repairer) RepairAll(ctx context.Context, pkgbases []string) error {
	errs := make([]error, len(pkgbases))
	progress := utils.NewProgress(len(pkgbases), "Verifying checksums")

	var g errgroup.Group
	g.SetLimit(r.jobs)
	for i, pkgbase := range pkgbases {
		g.Go(func() error {
			defer progress.Done()
			n, err := r.Repair(ctx, pkgbase)
			if err != nil {
				errs[i] = err
				return nil
			}
			if n > 0 {
				logrus.WithField("pkgbase", pkgbase).Infof("Updated %d checksum(s)", n)
			}
			return nil
		})
	}
	g.Wait()
	progress.Finish()

	return errors.Join(errs...)
}

// Substitute replaces every occurrence of the keys of replacements in text.
// At each offset the longest matching key wins, and replaced text is never
// matched again.
func Substitute(text string, replacements map[string]string) (string, int) {
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	var b strings.Builder
	b.Grow(len(text))
	count := 0

	for i := 0; i < len(text); {
		matched := false
		for _, k := range keys {
			if strings.HasPrefix(text[i:], k) {
				b.WriteString(replacements[k])
				i += len(k)
				count++
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(text[i])
			i++
		}
	}
	return b.String(), count
}
