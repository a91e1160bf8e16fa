// Package config assembles the immutable configuration of a run from
// built-in defaults, a TOML file, the makepkg environment variables and
// command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ralt/aurbuild/internal/models"
	"golang.org/x/sys/unix"
)

// FileName is the configuration file looked up in the package tree.
const FileName = "aurbuild.toml"

// Flags are the command-line settings. Zero values are unset.
type Flags struct {
	ConfigFile string
	RootDir    string
	Jobs       int
}

type fileConfig struct {
	Root       string   `toml:"root"`
	CArch      string   `toml:"carch"`
	SrcDest    string   `toml:"srcdest"`
	PkgDest    string   `toml:"pkgdest"`
	PkgExt     string   `toml:"pkgext"`
	SrcExt     string   `toml:"srcext"`
	SrcPkgDest string   `toml:"srcpkgdest"`
	BuildDir   string   `toml:"builddir"`
	PacmanConf string   `toml:"pacman_conf"`
	Databases  []string `toml:"databases"`
	Makepkg    string   `toml:"makepkg"`
	BuildArgs  []string `toml:"build_args"`
	RepoAdd    string   `toml:"repo_add"`
	Jobs       int      `toml:"jobs"`
}

// Defaults returns the built-in configuration for the package tree at root.
// PKGDEST is left empty: it defaults to the directory of the first local
// database once the databases are known.
func Defaults(root string) models.Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	return models.Config{
		RootDir:    root,
		CArch:      machine(),
		SrcDest:    filepath.Join(home, ".cache", "aur"),
		PkgExt:     ".pkg.tar.zst",
		SrcExt:     ".src.tar.gz",
		SrcPkgDest: root,
		BuildDir:   filepath.Join(os.TempDir(), "makepkg"),
		PacmanConf: "/etc/pacman.conf",
		Makepkg:    "makepkg",
		BuildArgs:  []string{"-srcf"},
		RepoAdd:    "repo-add",
		Jobs:       runtime.NumCPU(),
	}
}

// machine returns the hardware name reported by uname, like uname -m.
func machine() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return runtime.GOARCH
	}
	return unix.ByteSliceToString(uts.Machine[:])
}

// Load builds the configuration for flags, reading the environment of the
// process.
func Load(flags Flags) (models.Config, error) {
	return load(flags, os.Getenv)
}

func load(flags Flags, getenv func(string) string) (models.Config, error) {
	root := flags.RootDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return models.Config{}, models.NewError(models.ErrInvalidConfig, "", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return models.Config{}, models.NewError(models.ErrInvalidConfig, "", err)
	}

	cfg := Defaults(root)

	path, required := flags.ConfigFile, true
	if path == "" {
		path, required = findFile(root, getenv), false
	}
	if path != "" {
		if err := loadFile(path, &cfg, required); err != nil {
			return models.Config{}, models.NewError(models.ErrInvalidConfig, "", err)
		}
	}

	applyEnv(&cfg, getenv)

	if flags.RootDir != "" {
		cfg.RootDir = root
	}
	if flags.Jobs != 0 {
		cfg.Jobs = flags.Jobs
	}

	if err := validate(cfg); err != nil {
		return models.Config{}, models.NewError(models.ErrInvalidConfig, "", err)
	}
	return cfg, nil
}

// findFile returns the first configuration file that exists, looking in the
// package tree and then in the user configuration directory.
func findFile(root string, getenv func(string) string) string {
	candidates := []string{filepath.Join(root, FileName)}

	configHome := getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		candidates = append(candidates, filepath.Join(configHome, "aurbuild", "config.toml"))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// loadFile applies the keys defined in the TOML file at path. Relative paths
// in the file are taken relative to the file's directory.
func loadFile(path string, cfg *models.Config, required bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %s", path, undecoded[0])
	}

	dir := filepath.Dir(path)
	abs := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	if meta.IsDefined("root") {
		cfg.RootDir = abs(raw.Root)
		cfg.SrcPkgDest = cfg.RootDir
	}
	if meta.IsDefined("carch") {
		cfg.CArch = strings.TrimSpace(raw.CArch)
	}
	if meta.IsDefined("srcdest") {
		cfg.SrcDest = abs(raw.SrcDest)
	}
	if meta.IsDefined("pkgdest") {
		cfg.PkgDest = abs(raw.PkgDest)
	}
	if meta.IsDefined("pkgext") {
		cfg.PkgExt = strings.TrimSpace(raw.PkgExt)
	}
	if meta.IsDefined("srcext") {
		cfg.SrcExt = strings.TrimSpace(raw.SrcExt)
	}
	if meta.IsDefined("srcpkgdest") {
		cfg.SrcPkgDest = abs(raw.SrcPkgDest)
	}
	if meta.IsDefined("builddir") {
		cfg.BuildDir = abs(raw.BuildDir)
	}
	if meta.IsDefined("pacman_conf") {
		cfg.PacmanConf = abs(raw.PacmanConf)
	}
	if meta.IsDefined("databases") {
		cfg.Databases = make([]string, 0, len(raw.Databases))
		for _, db := range raw.Databases {
			if db = abs(db); db != "" {
				cfg.Databases = append(cfg.Databases, db)
			}
		}
	}
	if meta.IsDefined("makepkg") {
		cfg.Makepkg = strings.TrimSpace(raw.Makepkg)
	}
	if meta.IsDefined("build_args") {
		cfg.BuildArgs = append([]string(nil), raw.BuildArgs...)
	}
	if meta.IsDefined("repo_add") {
		cfg.RepoAdd = strings.TrimSpace(raw.RepoAdd)
	}
	if meta.IsDefined("jobs") {
		cfg.Jobs = raw.Jobs
	}

	return nil
}

// applyEnv applies the makepkg variables set in the environment.
func applyEnv(cfg *models.Config, getenv func(string) string) {
	for _, v := range []struct {
		name   string
		target *string
	}{
		{"CARCH", &cfg.CArch},
		{"SRCDEST", &cfg.SrcDest},
		{"PKGDEST", &cfg.PkgDest},
		{"PKGEXT", &cfg.PkgExt},
		{"SRCEXT", &cfg.SrcExt},
		{"SRCPKGDEST", &cfg.SrcPkgDest},
		{"BUILDDIR", &cfg.BuildDir},
	} {
		if value := getenv(v.name); value != "" {
			*v.target = value
		}
	}
}

func validate(cfg models.Config) error {
	if cfg.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
	}
	if cfg.CArch == "" {
		return errors.New("carch must not be empty")
	}
	if cfg.PkgExt == "" || !strings.HasPrefix(cfg.PkgExt, ".pkg.tar") {
		return fmt.Errorf("invalid pkgext %q", cfg.PkgExt)
	}
	if cfg.Makepkg == "" || cfg.RepoAdd == "" {
		return errors.New("makepkg and repo_add must not be empty")
	}
	return nil
}
