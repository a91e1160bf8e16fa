package srcinfo

import "strings"

// Source is one entry of a source array.
type Source struct {
	Filename string // Name the source is saved under
	Protocol string // "local", "https", "git", ...
	Location string // URL or path relative to the package directory
}

// IsLocal reports whether the source is a file shipped next to the PKGBUILD.
func (s Source) IsLocal() bool { return s.Protocol == "local" }

// SplitSource splits a source entry of the form
// [filename::][protocol+]location into its parts.
func SplitSource(entry string) Source {
	var filename, location string
	if i := strings.LastIndex(entry, "::"); i >= 0 {
		filename, location = entry[:i], entry[i+2:]
	} else {
		location = entry
	}

	protocol := "local"
	if i := strings.Index(location, "://"); i >= 0 {
		if j := strings.IndexByte(location[:i], '+'); j >= 0 {
			protocol = location[:j]
			location = location[j+1:]
		} else {
			protocol = location[:i]
		}
	}

	if filename == "" {
		if protocol == "local" {
			filename = lastElement(location)
		} else {
			name := location
			if i := strings.IndexByte(name, '#'); i >= 0 {
				name = name[:i]
			}
			if i := strings.IndexByte(name, '?'); i >= 0 {
				name = name[:i]
			}
			filename = lastElement(name)
			if protocol == "git" {
				filename = strings.TrimSuffix(filename, ".git")
			}
		}
	}

	return Source{Filename: filename, Protocol: protocol, Location: location}
}

func lastElement(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Sources returns the parsed entries of the source array for arch ("" for
// the architecture-independent array).
func (b *Base) Sources(arch string) []Source {
	raw := b.fields.values[SourcesKey(arch)]
	out := make([]Source, len(raw))
	for i, s := range raw {
		out[i] = SplitSource(s)
	}
	return out
}
