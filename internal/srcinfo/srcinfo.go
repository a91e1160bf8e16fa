// Package srcinfo parses .SRCINFO package descriptions into package bases
// and their split packages.
package srcinfo

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ralt/aurbuild/internal/models"
)

// Fields is an ordered set of description keys. Scalars are stored as
// single-value entries; arrays keep declaration order without duplicates.
type Fields struct {
	keys   []string
	values map[string][]string
}

func newFields() Fields {
	return Fields{values: make(map[string][]string)}
}

// Has reports whether key was declared, even with no values.
func (f Fields) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Get returns a copy of the values of key.
func (f Fields) Get(key string) []string {
	v, ok := f.values[key]
	if !ok {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Value returns the first value of key, or "".
func (f Fields) Value(key string) string {
	if v := f.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Keys returns the declared keys in declaration order.
func (f Fields) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

func (f *Fields) declare(key string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
		f.values[key] = []string{}
	}
}

// insert appends value to the array key. Empty values only declare the key
// and repeated values are dropped, except in source and checksum arrays.
func (f *Fields) insert(key, value string) {
	f.declare(key)
	if value == "" {
		return
	}
	if !isPositional(key) {
		for _, v := range f.values[key] {
			if v == value {
				return
			}
		}
	}
	f.values[key] = append(f.values[key], value)
}

func (f *Fields) set(key, value string) {
	f.declare(key)
	f.values[key] = []string{value}
}

// Base is a parsed package base: the buildable unit of a PKGBUILD.
type Base struct {
	Name   string
	Epoch  string
	Pkgver string
	Pkgrel string

	fields   Fields
	packages []*Package
}

// Package is one split package of a Base. Its fields are fully resolved:
// overridable keys not declared in its own section carry the base values.
type Package struct {
	Name string

	base      *Base
	fields    Fields
	overrides []string
}

// Get returns the base-level values of key.
func (b *Base) Get(key string) []string { return b.fields.Get(key) }

// Value returns the first base-level value of key.
func (b *Base) Value(key string) string { return b.fields.Value(key) }

// Has reports whether key is declared at base level.
func (b *Base) Has(key string) bool { return b.fields.Has(key) }

// Keys returns the base-level keys in declaration order.
func (b *Base) Keys() []string { return b.fields.Keys() }

// Arch returns the declared architectures.
func (b *Base) Arch() []string { return b.fields.Get("arch") }

// Any reports whether the base is architecture independent.
func (b *Base) Any() bool {
	arch := b.fields.values["arch"]
	return len(arch) == 1 && arch[0] == "any"
}

// ArchSuffixes returns "" followed by every declared architecture, unless
// the base is architecture independent.
func (b *Base) ArchSuffixes() []string {
	out := []string{""}
	if b.Any() {
		return out
	}
	return append(out, b.Arch()...)
}

// Version returns the full version, [epoch:]pkgver-pkgrel.
func (b *Base) Version() string {
	if b.Epoch != "" {
		return fmt.Sprintf("%s:%s-%s", b.Epoch, b.Pkgver, b.Pkgrel)
	}
	return fmt.Sprintf("%s-%s", b.Pkgver, b.Pkgrel)
}

// Packages returns the split packages in declaration order.
func (b *Base) Packages() []*Package {
	out := make([]*Package, len(b.packages))
	copy(out, b.packages)
	return out
}

// Package returns the split package called name, or nil.
func (b *Base) Package(name string) *Package {
	for _, p := range b.packages {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// PackageNames returns the names of the split packages.
func (b *Base) PackageNames() []string {
	names := make([]string, len(b.packages))
	for i, p := range b.packages {
		names[i] = p.Name
	}
	return names
}

// IsVCS reports whether the base builds from a live checkout.
func (b *Base) IsVCS() bool { return IsVCS(b.Name) }

// Artifacts returns the package files a successful build of b produces.
func (b *Base) Artifacts(pkgdest, pkgext, carch string) []models.Artifact {
	ver := b.Version()
	out := make([]models.Artifact, 0, len(b.packages))
	for _, p := range b.packages {
		arch := carch
		if p.HasArch("any") {
			arch = "any"
		}
		out = append(out, models.Artifact{
			Name:    p.Name,
			Version: ver,
			Arch:    arch,
			Path:    filepath.Join(pkgdest, fmt.Sprintf("%s-%s-%s%s", p.Name, ver, arch, pkgext)),
		})
	}
	return out
}

// Base returns the package base p belongs to.
func (p *Package) Base() *Base { return p.base }

// Get returns the resolved values of key.
func (p *Package) Get(key string) []string { return p.fields.Get(key) }

// Value returns the first resolved value of key.
func (p *Package) Value(key string) string { return p.fields.Value(key) }

// Has reports whether key is resolved for p.
func (p *Package) Has(key string) bool { return p.fields.Has(key) }

// Keys returns the resolved keys.
func (p *Package) Keys() []string { return p.fields.Keys() }

// Overrides returns the keys declared in p's own section.
func (p *Package) Overrides() []string {
	out := make([]string, len(p.overrides))
	copy(out, p.overrides)
	return out
}

// HasArch reports whether arch is one of p's architectures.
func (p *Package) HasArch(arch string) bool {
	for _, a := range p.fields.values["arch"] {
		if a == arch {
			return true
		}
	}
	return false
}

var vcsSuffixes = []string{"-git", "-svn", "-bzr", "-hg", "-cvs", "-nightly"}

// IsVCS reports whether name follows the naming convention of packages built
// from a live version-control checkout.
func IsVCS(name string) bool {
	for _, s := range vcsSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
