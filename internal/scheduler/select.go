package scheduler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralt/aurbuild/internal/cache"
	"github.com/ralt/aurbuild/internal/models"
	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/utils"
	"github.com/sirupsen/logrus"
)

// Select returns the package bases to work on. Without names every
// directory of root holding a PKGBUILD is selected, symbolic links
// excluded, and VCS packages are
// left out unless devel is true. With names, VCS packages are kept unless
// devel is false. A nil devel means unset.
func Select(root string, names []string, devel *bool) ([]string, error) {
	if len(names) == 0 {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("cannot list packages: %w", err))
		}

		var selected []string
		for _, entry := range entries {
			name := entry.Name()
			if !entry.IsDir() {
				continue
			}
			if !utils.IsRegular(filepath.Join(root, name, cache.PKGBUILD)) {
				continue
			}
			if srcinfo.IsVCS(name) && (devel == nil || !*devel) {
				logrus.WithField("pkgbase", name).Warn("Skipping VCS package, pass --devel to include it")
				continue
			}
			selected = append(selected, name)
		}
		return selected, nil
	}

	seen := make(map[string]bool, len(names))
	var selected []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		path := filepath.Join(root, name, cache.PKGBUILD)
		if !utils.IsRegular(path) {
			return nil, models.NewError(models.ErrInvalidConfig, name, fmt.Errorf("%s does not exist", path))
		}
		if srcinfo.IsVCS(name) && devel != nil && !*devel {
			logrus.WithField("pkgbase", name).Warn("Skipping VCS package, --no-devel is set")
			continue
		}
		selected = append(selected, name)
	}
	return selected, nil
}
