package srcinfo

import "strings"

// ChecksumAlgorithms lists the checksum algorithms a description may declare,
// in the order makepkg emits them.
var ChecksumAlgorithms = []string{"md5", "sha1", "sha224", "sha256", "sha384", "sha512", "b2"}

// arrays that never carry an architecture suffix
var plainArrays = map[string]bool{
	"pkgname":      true,
	"arch":         true,
	"groups":       true,
	"license":      true,
	"noextract":    true,
	"options":      true,
	"backup":       true,
	"validpgpkeys": true,
}

// array families that may be suffixed with _<arch>
var archArrays = map[string]bool{
	"source":       true,
	"conflicts":    true,
	"provides":     true,
	"replaces":     true,
	"depends":      true,
	"makedepends":  true,
	"checkdepends": true,
	"optdepends":   true,
}

var overridableScalars = map[string]bool{
	"pkgdesc":   true,
	"url":       true,
	"install":   true,
	"changelog": true,
}

var overridableArrays = map[string]bool{
	"arch":      true,
	"groups":    true,
	"license":   true,
	"noextract": true,
	"options":   true,
	"backup":    true,
}

var overridableArchArrays = map[string]bool{
	"depends":    true,
	"optdepends": true,
	"conflicts":  true,
	"provides":   true,
	"replaces":   true,
}

// splitKey splits "depends_x86_64" into ("depends", "x86_64"). Keys without
// an underscore have an empty suffix.
func splitKey(key string) (family, suffix string) {
	if i := strings.IndexByte(key, '_'); i > 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

func isChecksumFamily(family string) bool {
	for _, algo := range ChecksumAlgorithms {
		if family == algo+"sums" {
			return true
		}
	}
	return false
}

// isArchFamily reports whether family accepts an architecture suffix.
func isArchFamily(family string) bool {
	return archArrays[family] || isChecksumFamily(family)
}

// IsArray reports whether key accumulates values instead of being assigned
// once.
func IsArray(key string) bool {
	if plainArrays[key] {
		return true
	}
	family, _ := splitKey(key)
	return isArchFamily(family)
}

// isPositional reports whether key is a source or checksum array. Those are
// paired by index, so repeated values are kept.
func isPositional(key string) bool {
	family, _ := splitKey(key)
	return family == "source" || isChecksumFamily(family)
}

// IsOverridable reports whether key may appear inside a pkgname section.
func IsOverridable(key string) bool {
	if overridableScalars[key] || overridableArrays[key] {
		return true
	}
	family, _ := splitKey(key)
	return overridableArchArrays[family]
}

// archSuffix returns the architecture suffix of an array key, or "" when
// the key is not an architecture-specific array.
func archSuffix(key string) string {
	if plainArrays[key] {
		return ""
	}
	family, suffix := splitKey(key)
	if !isArchFamily(family) {
		return ""
	}
	return suffix
}

// SourcesKey returns the source array key for an architecture ("" for the
// architecture-independent array).
func SourcesKey(arch string) string {
	return suffixed("source", arch)
}

// ChecksumsKey returns the checksum array key of algo for an architecture.
func ChecksumsKey(algo, arch string) string {
	return suffixed(algo+"sums", arch)
}

func suffixed(key, arch string) string {
	if arch == "" {
		return key
	}
	return key + "_" + arch
}
