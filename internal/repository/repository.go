// Package repository reads the package databases maintained by repo-add.
package repository

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// Entry is one published package of a database.
type Entry struct {
	Name    string
	Version string
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Read lists the packages published in the database at path. Each top-level
// directory of the archive is named <pkgname>-<pkgver>-<pkgrel>.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, closer, err := decompress(bufio.NewReader(f), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer closer()

	var entries []Entry
	seen := make(map[string]bool)

	tarReader := tar.NewReader(r)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		dir, _, _ := strings.Cut(strings.TrimPrefix(header.Name, "./"), "/")
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true

		entry, ok := SplitEntry(dir)
		if !ok {
			logrus.Debugf("Ignoring unexpected entry %q in %s", dir, path)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// decompress wraps r according to the compression it starts with. The file
// extension is only consulted when no known magic number is found.
func decompress(r *bufio.Reader, path string) (io.Reader, func(), error) {
	head, _ := r.Peek(len(xzMagic))
	noop := func() {}

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, noop, nil
	case bytes.HasPrefix(head, gzipMagic):
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, func() { gr.Close() }, nil
	}

	switch {
	case strings.HasSuffix(path, ".zst"), strings.HasSuffix(path, ".xz"), strings.HasSuffix(path, ".gz"):
		return nil, nil, errors.New("compressed database does not start with a known header")
	}
	// plain tar, or the .db symlink pointing at one
	return r, noop, nil
}

// SplitEntry splits a database directory name on its last-but-one hyphen
// into the package name and the pkgver-pkgrel version.
func SplitEntry(dir string) (Entry, bool) {
	last := strings.LastIndex(dir, "-")
	if last <= 0 {
		return Entry{}, false
	}
	i := strings.LastIndex(dir[:last], "-")
	if i <= 0 || last == len(dir)-1 || i+1 == last {
		return Entry{}, false
	}
	return Entry{Name: dir[:i], Version: dir[i+1:]}, true
}

// Record locates a published version of a package.
type Record struct {
	Version  string
	Database string
}

// Index holds the published packages of several databases.
type Index struct {
	records map[string][]Record
}

// Open reads every database in order. A database that does not exist yet is
// treated as empty, since repo-add creates it on first use.
func Open(databases []string) (*Index, error) {
	idx := &Index{records: make(map[string][]Record)}

	for _, db := range databases {
		entries, err := Read(db)
		if errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("Database %s does not exist yet", db)
			continue
		}
		if err != nil {
			return nil, err
		}
		logrus.Debugf("Read %d packages from %s", len(entries), db)

		for _, e := range entries {
			idx.records[e.Name] = append(idx.records[e.Name], Record{Version: e.Version, Database: db})
		}
	}

	return idx, nil
}

// Lookup returns every published version of name, in database order.
func (idx *Index) Lookup(name string) []Record {
	return append([]Record(nil), idx.records[name]...)
}
