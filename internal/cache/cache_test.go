package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ralt/aurbuild/internal/models"
	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/testutil"
)

func TestReadFreshCache(t *testing.T) {
	root := t.TempDir()
	cached := testutil.Srcinfo("foo", "1.0", "1", "x86_64")
	testutil.WritePackage(t, root, "foo", "pkgname=foo", cached)

	b := testutil.NewBuilder()
	c := New(root, b)

	if c.Stale("foo") {
		t.Fatal("fresh .SRCINFO reported as stale")
	}
	text, err := c.Read(context.Background(), "foo", true)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if text != cached {
		t.Errorf("Read returned %q, want cached content", text)
	}
	if len(b.Printed) != 0 {
		t.Errorf("builder was invoked for a fresh cache: %v", b.Printed)
	}
}

func TestReadRegeneratesMissingCache(t *testing.T) {
	root := t.TempDir()
	testutil.WritePackage(t, root, "foo", "pkgname=foo", "")

	b := testutil.NewBuilder()
	b.Srcinfo["foo"] = testutil.Srcinfo("foo", "2.0", "1", "any")
	c := New(root, b)

	text, err := c.Read(context.Background(), "foo", true)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if text != b.Srcinfo["foo"] {
		t.Errorf("Read returned %q", text)
	}

	data, err := os.ReadFile(filepath.Join(root, "foo", SRCINFO))
	if err != nil {
		t.Fatalf("regenerated .SRCINFO was not stored: %v", err)
	}
	if string(data) != text {
		t.Errorf("stored .SRCINFO = %q", data)
	}
	if c.Stale("foo") {
		t.Error("cache still stale after regeneration")
	}
}

func TestReadWithoutStore(t *testing.T) {
	root := t.TempDir()
	testutil.WritePackage(t, root, "foo", "pkgname=foo", "")

	b := testutil.NewBuilder()
	b.Srcinfo["foo"] = testutil.Srcinfo("foo", "2.0", "1", "any")
	c := New(root, b)

	if _, err := c.Read(context.Background(), "foo", false); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "foo", SRCINFO)); !os.IsNotExist(err) {
		t.Error(".SRCINFO was written although caching was not requested")
	}
}

func TestReadRegeneratesOlderCache(t *testing.T) {
	root := t.TempDir()
	dir := testutil.WritePackage(t, root, "foo", "pkgname=foo", testutil.Srcinfo("foo", "1.0", "1", "any"))

	// PKGBUILD edited after the cache was written
	now := time.Now()
	if err := os.Chtimes(filepath.Join(dir, SRCINFO), now.Add(-2*time.Hour), now.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	b := testutil.NewBuilder()
	b.Srcinfo["foo"] = testutil.Srcinfo("foo", "1.1", "1", "any")
	c := New(root, b)

	if !c.Stale("foo") {
		t.Fatal("older .SRCINFO not reported as stale")
	}
	base, err := c.Load(context.Background(), "foo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if base.Version() != "1.1-1" {
		t.Errorf("version = %s, want regenerated 1.1-1", base.Version())
	}
}

func TestLoadBuildToolError(t *testing.T) {
	root := t.TempDir()
	testutil.WritePackage(t, root, "foo", "pkgname=foo", "")

	b := testutil.NewBuilder()
	b.FailPrint["foo"] = true
	c := New(root, b)

	_, err := c.Load(context.Background(), "foo")
	if !models.IsType(err, models.ErrBuildTool) {
		t.Fatalf("expected a BuildTool error, got %v", err)
	}
	var e *models.Error
	if errors.As(err, &e) && e.Package != "foo" {
		t.Errorf("error names %q instead of foo", e.Package)
	}
}

func TestLoadParseError(t *testing.T) {
	root := t.TempDir()
	testutil.WritePackage(t, root, "foo", "pkgname=foo", "pkgbase = foo\npkgbase = bar\n")

	c := New(root, testutil.NewBuilder())

	_, err := c.Load(context.Background(), "foo")
	if !models.IsType(err, models.ErrParse) {
		t.Fatalf("expected a Parse error, got %v", err)
	}
	var perr *srcinfo.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error does not wrap *srcinfo.ParseError: %v", err)
	}
	if perr.Line != 2 || perr.Filename != filepath.Join("foo", SRCINFO) {
		t.Errorf("parse error location = %s:%d", perr.Filename, perr.Line)
	}
}

func TestLoadRefreshesVCSPackages(t *testing.T) {
	root := t.TempDir()
	testutil.WritePackage(t, root, "foo-git", "pkgver=1", testutil.Srcinfo("foo-git", "1", "1", "any"))

	b := testutil.NewBuilder()
	b.Srcinfo["foo-git"] = testutil.Srcinfo("foo-git", "2.r10", "1", "any")
	b.OnRefresh = func(dir string) error {
		// makepkg rewrites pkgver, which makes the cache stale
		path := filepath.Join(dir, PKGBUILD)
		if err := os.WriteFile(path, []byte("pkgver=2.r10"), 0644); err != nil {
			return err
		}
		later := time.Now().Add(time.Minute)
		return os.Chtimes(path, later, later)
	}
	c := New(root, b)

	base, err := c.Load(context.Background(), "foo-git")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(b.Refreshed) != 1 {
		t.Errorf("refreshed %v, want [foo-git]", b.Refreshed)
	}
	if base.Pkgver != "2.r10" {
		t.Errorf("pkgver = %s, want refreshed 2.r10", base.Pkgver)
	}
}

func TestLoadRefreshFailure(t *testing.T) {
	root := t.TempDir()
	testutil.WritePackage(t, root, "foo-git", "pkgver=1", testutil.Srcinfo("foo-git", "1", "1", "any"))

	b := testutil.NewBuilder()
	b.OnRefresh = func(string) error { return errors.New("git clone failed") }
	c := New(root, b)

	if _, err := c.Load(context.Background(), "foo-git"); !models.IsType(err, models.ErrBuildTool) {
		t.Fatalf("expected a BuildTool error, got %v", err)
	}
}

func TestLoadAllCollectsFailures(t *testing.T) {
	root := t.TempDir()
	b := testutil.NewBuilder()
	b.PrintDelay = 20 * time.Millisecond

	var names []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		testutil.WritePackage(t, root, name, "pkgname="+name, "")
		b.Srcinfo[name] = testutil.Srcinfo(name, "1.0", "1", "any")
		names = append(names, name)
	}
	b.FailPrint["b"] = true
	b.FailPrint["e"] = true

	c := New(root, b)
	bases, err := c.LoadAll(context.Background(), names, 2)
	if err == nil {
		t.Fatal("expected the failures to be reported")
	}
	if !models.IsType(err, models.ErrBuildTool) {
		t.Errorf("expected BuildTool errors, got %v", err)
	}

	for i, name := range names {
		failed := name == "b" || name == "e"
		if failed != (bases[i] == nil) {
			t.Errorf("%s: base = %v, failed = %v", name, bases[i], failed)
		}
		if !failed && bases[i].Name != name {
			t.Errorf("slot %d holds %s, want %s", i, bases[i].Name, name)
		}
	}
	if len(b.Printed) != len(names) {
		t.Errorf("attempted %v, want every package", b.Printed)
	}
	if b.MaxFlight > 2 {
		t.Errorf("%d loads ran at once, limit is 2", b.MaxFlight)
	}
}
