package models

// Config contains everything the build pipeline needs to know about the
// host and the package tree. It is built once by config.Load and passed by
// value; components never read the process environment themselves.
type Config struct {
	// Package tree
	RootDir string // Directory holding one sub-directory per package base

	// makepkg environment
	CArch      string // Target architecture (CARCH)
	SrcDest    string // Source cache directory (SRCDEST)
	PkgDest    string // Built package destination (PKGDEST), empty = next to the first database
	PkgExt     string // Package archive extension (PKGEXT)
	SrcExt     string // Source archive extension (SRCEXT)
	SrcPkgDest string // Source package destination (SRCPKGDEST)
	BuildDir   string // Build scratch directory (BUILDDIR)

	// Repositories
	PacmanConf string   // pacman.conf used to discover local databases
	Databases  []string // Explicit databases, used instead of PacmanConf when set

	// External tools
	Makepkg   string   // Builder executable
	BuildArgs []string // Arguments passed to the builder in build mode
	RepoAdd   string   // Index-update executable

	// Scheduling
	Jobs int // Parallelism of metadata preparation and checksum verification
}

// Artifact is a package file produced by a build and the database it is
// published to.
type Artifact struct {
	Name     string
	Version  string
	Arch     string
	Path     string
	Database string
}
