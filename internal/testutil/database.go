package testutil

import (
	"archive/tar"
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// WriteDatabase writes a repo-add style database at path listing the given
// "name-pkgver-pkgrel" entries. The compression is chosen from the path
// suffix: .zst, .xz, .gz, or none.
func WriteDatabase(t *testing.T, path string, entries ...string) {
	t.Helper()

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)

	for _, entry := range entries {
		dirName := entry + "/"
		if err := tw.WriteHeader(&tar.Header{Name: dirName, Mode: 0755, Typeflag: tar.TypeDir}); err != nil {
			t.Fatalf("Failed to write tar header: %v", err)
		}

		desc := descFile(entry)
		if err := tw.WriteHeader(&tar.Header{Name: dirName + "desc", Mode: 0644, Size: int64(len(desc))}); err != nil {
			t.Fatalf("Failed to write tar header: %v", err)
		}
		if _, err := tw.Write(desc); err != nil {
			t.Fatalf("Failed to write desc: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Failed to close tar: %v", err)
	}

	var out bytes.Buffer
	switch {
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(&out)
		if err != nil {
			t.Fatal(err)
		}
		zw.Write(tarBuf.Bytes())
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
	case strings.HasSuffix(path, ".xz"):
		xw, err := xz.NewWriter(&out)
		if err != nil {
			t.Fatal(err)
		}
		xw.Write(tarBuf.Bytes())
		if err := xw.Close(); err != nil {
			t.Fatal(err)
		}
	case strings.HasSuffix(path, ".gz"):
		gw := gzip.NewWriter(&out)
		gw.Write(tarBuf.Bytes())
		if err := gw.Close(); err != nil {
			t.Fatal(err)
		}
	default:
		out = tarBuf
	}

	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write database: %v", err)
	}
}

// descFile renders the desc entry repo-add stores next to each package.
func descFile(entry string) []byte {
	i := strings.LastIndex(entry, "-")
	if i > 0 {
		i = strings.LastIndex(entry[:i], "-")
	}
	if i <= 0 {
		return []byte(fmt.Sprintf("%%NAME%%\n%s\n\n", entry))
	}
	return []byte(fmt.Sprintf("%%NAME%%\n%s\n\n%%VERSION%%\n%s\n\n", entry[:i], entry[i+1:]))
}
