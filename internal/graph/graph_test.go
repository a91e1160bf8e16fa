package graph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/testutil"
)

func parse(t *testing.T, text string) *srcinfo.Base {
	t.Helper()
	base, err := srcinfo.ParseString(text)
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return base
}

func pkg(t *testing.T, name string, extra ...string) *srcinfo.Base {
	t.Helper()
	return parse(t, testutil.Srcinfo(name, "1.0", "1", "x86_64", extra...))
}

func names(bases []*srcinfo.Base) []string {
	out := make([]string, len(bases))
	for i, b := range bases {
		out[i] = b.Name
	}
	return out
}

func order(t *testing.T, bases []*srcinfo.Base, working ...string) []string {
	t.Helper()
	g, err := New(bases, "x86_64")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	o, err := g.Order(working)
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	return names(o)
}

func TestProvidesResolution(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "depends = libx>=1.5"),
		pkg(t, "b", "provides = libx=2.0"),
	}

	got := order(t, bases, "a", "b")
	if diff := cmp.Diff([]string{"b", "a"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestProvidesVersionFilter(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "depends = libx>=1.5"),
		pkg(t, "old", "provides = libx=1.0"),
		pkg(t, "new", "provides = libx=2.0"),
	}

	g, err := New(bases, "x86_64")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"new"}, g.Dependencies("a")); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestUnversionedProvidesUsesPkgver(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "depends = libx>=0.5"),
		pkg(t, "b", "provides = libx"),
	}

	got := order(t, bases, "a", "b")
	if diff := cmp.Diff([]string{"b", "a"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestDirectNameBeatsProvides(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "makedepends = b"),
		pkg(t, "b"),
		pkg(t, "fake-b", "provides = b=9"),
	}

	g, err := New(bases, "x86_64")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b"}, g.Dependencies("a")); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestDirectVersionConstraint(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "depends = b=1.0-1", "checkdepends = c>1.0"),
		pkg(t, "b"),
		pkg(t, "c"),
	}

	g, err := New(bases, "x86_64")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b"}, g.Dependencies("a")); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestArchSpecificDependencies(t *testing.T) {
	a := pkg(t, "a", "arch = aarch64", "depends_aarch64 = b")
	b := pkg(t, "b")

	for _, tt := range []struct {
		carch string
		want  []string
	}{
		{"x86_64", []string{}},
		{"aarch64", []string{"b"}},
	} {
		g, err := New([]*srcinfo.Base{a, b}, tt.carch)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tt.want, g.Dependencies("a")); diff != "" {
			t.Errorf("%s: dependencies mismatch (-want +got):\n%s", tt.carch, diff)
		}
	}
}

func TestExternalDependenciesIgnored(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "depends = glibc", "makedepends = cmake>=3"),
	}
	got := order(t, bases, "a")
	if diff := cmp.Diff([]string{"a"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTransitiveOrderOutsideWorkingSet(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "depends = b"),
		pkg(t, "b", "depends = c"),
		pkg(t, "c"),
	}

	got := order(t, bases, "a", "c")
	if diff := cmp.Diff([]string{"c", "a"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderIsValidUnderRemoval(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "app", "depends = libgui", "makedepends = tool"),
		pkg(t, "libgui", "depends = libcore", "depends = libimg"),
		pkg(t, "libimg", "depends = libcore"),
		pkg(t, "libcore"),
		pkg(t, "tool", "depends = libcore"),
		pkg(t, "plugin", "depends = app>=1.0"),
	}
	all := names(bases)

	g, err := New(bases, "x86_64")
	if err != nil {
		t.Fatal(err)
	}

	check := func(working []string) {
		o, err := g.Order(working)
		if err != nil {
			t.Fatalf("Order(%v) failed: %v", working, err)
		}
		got := names(o)
		if len(got) != len(working) {
			t.Fatalf("Order(%v) = %v, want every working base exactly once", working, got)
		}

		position := make(map[string]int)
		for i, name := range got {
			if _, dup := position[name]; dup {
				t.Fatalf("Order(%v) lists %s twice", working, name)
			}
			position[name] = i
		}
		for _, name := range got {
			for _, dep := range g.Dependencies(name) {
				if p, ok := position[dep]; ok && p >= position[name] {
					t.Errorf("Order(%v) = %v: %s must precede %s", working, got, dep, name)
				}
			}
		}
	}

	check(all)
	for skip := range all {
		var working []string
		for i, name := range all {
			if i != skip {
				working = append(working, name)
			}
		}
		check(working)
	}
}

func TestCycleDetected(t *testing.T) {
	bases := []*srcinfo.Base{
		pkg(t, "a", "depends = b"),
		pkg(t, "b", "depends = c"),
		pkg(t, "c", "makedepends = a"),
	}

	g, err := New(bases, "x86_64")
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Order([]string{"a", "b", "c"})

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "a"}, cycle.Path); diff != "" {
		t.Errorf("cycle path mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitPackageSelfDependencyIgnored(t *testing.T) {
	bar := parse(t, `pkgbase = bar
	pkgver = 1.0
	pkgrel = 1
	arch = x86_64
	makedepends = bar-libs

pkgname = bar
	depends = bar-libs

pkgname = bar-libs
`)

	got := order(t, []*srcinfo.Base{bar}, "bar")
	if diff := cmp.Diff([]string{"bar"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicatePackageName(t *testing.T) {
	bases := []*srcinfo.Base{pkg(t, "a"), pkg(t, "a")}
	if _, err := New(bases, "x86_64"); err == nil {
		t.Error("expected an error for a duplicated package")
	}
}

func TestUnknownWorkingBase(t *testing.T) {
	g, err := New([]*srcinfo.Base{pkg(t, "a")}, "x86_64")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Order([]string{"missing"}); err == nil {
		t.Error("expected an error for an unknown base")
	}
}
