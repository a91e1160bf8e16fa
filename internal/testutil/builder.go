// Package testutil provides an in-process stand-in for makepkg and repo-add
// and helpers for laying out package trees in tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// Builder is a fake builder.Builder and builder.Updater. PrintSrcinfo
// returns the description registered for the directory's base name.
type Builder struct {
	mu sync.Mutex

	Srcinfo    map[string]string // pkgbase -> description
	FailPrint  map[string]bool   // pkgbase -> PrintSrcinfo fails
	FailBuild  map[string]bool   // pkgbase -> Build fails
	FailAdd    bool
	OnRefresh  func(dir string) error
	OnBuild    func(dir string) error
	Printed    []string   // pkgbases PrintSrcinfo ran for
	Refreshed  []string   // pkgbases RefreshVersion ran for
	Built      []string   // pkgbases built, in order
	Added      [][]string // database followed by archives, per Add call
	InFlight   int
	MaxFlight  int
	PrintDelay time.Duration
}

// NewBuilder creates an empty fake builder.
func NewBuilder() *Builder {
	return &Builder{
		Srcinfo:   make(map[string]string),
		FailPrint: make(map[string]bool),
		FailBuild: make(map[string]bool),
	}
}

func (b *Builder) PrintSrcinfo(ctx context.Context, dir string) (string, error) {
	name := filepath.Base(dir)

	b.mu.Lock()
	b.Printed = append(b.Printed, name)
	b.InFlight++
	if b.InFlight > b.MaxFlight {
		b.MaxFlight = b.InFlight
	}
	text, ok := b.Srcinfo[name]
	fail := b.FailPrint[name]
	delay := b.PrintDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	b.InFlight--
	b.mu.Unlock()

	if fail || !ok {
		return "", fmt.Errorf("makepkg --printsrcinfo failed for %s", name)
	}
	return text, nil
}

func (b *Builder) RefreshVersion(ctx context.Context, dir string) error {
	b.mu.Lock()
	b.Refreshed = append(b.Refreshed, filepath.Base(dir))
	hook := b.OnRefresh
	b.mu.Unlock()

	if hook != nil {
		return hook(dir)
	}
	return nil
}

func (b *Builder) Build(ctx context.Context, dir string) error {
	name := filepath.Base(dir)

	b.mu.Lock()
	b.Built = append(b.Built, name)
	fail := b.FailBuild[name]
	hook := b.OnBuild
	b.mu.Unlock()

	if fail {
		return fmt.Errorf("makepkg failed for %s", name)
	}
	if hook != nil {
		return hook(dir)
	}
	return nil
}

func (b *Builder) Add(ctx context.Context, database string, archives []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailAdd {
		return fmt.Errorf("repo-add failed for %s", database)
	}
	b.Added = append(b.Added, append([]string{database}, archives...))
	return nil
}

// WritePackage creates root/pkgbase with a PKGBUILD and, when srcinfo is not
// empty, a .SRCINFO that is newer than the PKGBUILD.
func WritePackage(t *testing.T, root, pkgbase, pkgbuild, srcinfo string) string {
	t.Helper()

	dir := filepath.Join(root, pkgbase)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}

	pkgbuildPath := filepath.Join(dir, "PKGBUILD")
	if err := os.WriteFile(pkgbuildPath, []byte(pkgbuild), 0644); err != nil {
		t.Fatalf("Failed to write PKGBUILD: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(pkgbuildPath, old, old); err != nil {
		t.Fatalf("Failed to set PKGBUILD mtime: %v", err)
	}

	if srcinfo != "" {
		if err := os.WriteFile(filepath.Join(dir, ".SRCINFO"), []byte(srcinfo), 0644); err != nil {
			t.Fatalf("Failed to write .SRCINFO: %v", err)
		}
	}
	return dir
}

// Srcinfo renders a minimal description for a single-package base.
func Srcinfo(pkgbase, pkgver, pkgrel, arch string, extra ...string) string {
	s := fmt.Sprintf("pkgbase = %s\n\tpkgver = %s\n\tpkgrel = %s\n\tarch = %s\n", pkgbase, pkgver, pkgrel, arch)
	for _, line := range extra {
		s += "\t" + line + "\n"
	}
	return s + fmt.Sprintf("\npkgname = %s\n", pkgbase)
}
