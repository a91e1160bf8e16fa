package utils

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// NewHash returns the hash behind a makepkg checksum array prefix
// (md5sums, sha256sums, b2sums, ...).
func NewHash(algo string) (hash.Hash, error) {
	switch algo {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha224":
		return sha256.New224(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha512":
		return sha512.New(), nil
	case "b2":
		return blake2b.New512(nil)
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}

// Digest streams r through the given algorithm and returns the hex digest.
func Digest(r io.Reader, algo string) (string, error) {
	h, err := NewHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
