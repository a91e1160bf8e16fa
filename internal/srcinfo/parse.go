package srcinfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseError reports a malformed or structurally invalid description.
type ParseError struct {
	Filename string
	Line     int
	Text     string
	Msg      string
}

func (e *ParseError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s:%d: %s: %q", e.Filename, e.Line, e.Msg, e.Text)
	}
	return fmt.Sprintf("%s:%d: %s", e.Filename, e.Line, e.Msg)
}

type line struct {
	num   int
	text  string
	key   string
	value string
}

// ParseFile parses the description stored at path.
func ParseFile(path string) (*Base, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, path)
}

// ParseString parses a description held in memory.
func ParseString(s string) (*Base, error) {
	return Parse(strings.NewReader(s), "<string>")
}

// Parse reads a description from r. filename is only used in errors.
func Parse(r io.Reader, filename string) (*Base, error) {
	lines, err := readLines(r, filename)
	if err != nil {
		return nil, err
	}

	p := &parser{filename: filename}
	return p.parse(lines)
}

func readLines(r io.Reader, filename string) ([]line, error) {
	var lines []line

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	num := 0
	for scanner.Scan() {
		num++
		text := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		key, value, ok := strings.Cut(text, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &ParseError{Filename: filename, Line: num, Text: text, Msg: "invalid line"}
		}

		lines = append(lines, line{num: num, text: text, key: key, value: strings.TrimSpace(value)})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

type parser struct {
	filename string
	last     int
}

func (p *parser) errorf(l line, format string, args ...any) error {
	return &ParseError{Filename: p.filename, Line: l.num, Text: l.text, Msg: fmt.Sprintf(format, args...)}
}

// finalErrorf reports a problem found after the whole input was read.
func (p *parser) finalErrorf(format string, args ...any) error {
	return &ParseError{Filename: p.filename, Line: p.last, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parse(lines []line) (*Base, error) {
	base := &Base{fields: newFields()}
	hasBase := false

	// cur is nil while in the pkgbase section
	var cur *Package

	for _, l := range lines {
		p.last = l.num

		switch {
		case l.key == "pkgbase":
			if hasBase {
				return nil, p.errorf(l, "pkgbase declared more than once")
			}
			if cur != nil {
				return nil, p.errorf(l, "pkgbase declared after pkgname")
			}
			hasBase = true
			base.Name = l.value

		case l.key == "pkgname":
			if l.value == "" {
				return nil, p.errorf(l, "empty pkgname")
			}
			if base.Package(l.value) != nil {
				return nil, p.errorf(l, "pkgname %s declared more than once", l.value)
			}
			cur = &Package{Name: l.value, base: base, fields: newFields()}
			base.packages = append(base.packages, cur)

		default:
			if cur != nil && !IsOverridable(l.key) {
				return nil, p.errorf(l, "%s can only be in pkgbase", l.key)
			}

			fields := &base.fields
			if cur != nil {
				fields = &cur.fields
				if !cur.fields.Has(l.key) {
					cur.overrides = append(cur.overrides, l.key)
				}
			}

			if IsArray(l.key) {
				fields.insert(l.key, l.value)
				continue
			}
			if fields.Has(l.key) {
				return nil, p.errorf(l, "%s declared more than once", l.key)
			}
			fields.set(l.key, l.value)
		}
	}

	if err := p.validate(base, hasBase); err != nil {
		return nil, err
	}

	propagateDefaults(base)
	return base, nil
}

func (p *parser) validate(base *Base, hasBase bool) error {
	if len(base.packages) == 0 {
		return p.finalErrorf("no pkgname declared")
	}
	if !hasBase || base.Name == "" {
		// makepkg defaults pkgbase to the first package name
		base.Name = base.packages[0].Name
	}

	base.Epoch = base.fields.Value("epoch")
	base.Pkgver = base.fields.Value("pkgver")
	base.Pkgrel = base.fields.Value("pkgrel")
	if base.Pkgver == "" {
		return p.finalErrorf("pkgver not specified")
	}
	if base.Pkgrel == "" {
		return p.finalErrorf("pkgrel not specified")
	}

	arch := base.fields.values["arch"]
	if len(arch) == 0 {
		return p.finalErrorf("arch not specified")
	}
	if len(arch) >= 2 && contains(arch, "any") {
		return p.finalErrorf("package cannot be arch-specific and arch-independent simultaneously")
	}

	for _, key := range base.fields.keys {
		if err := p.checkSuffix(base, key); err != nil {
			return err
		}
	}
	for _, pkg := range base.packages {
		pkgArch := pkg.fields.values["arch"]
		if len(pkgArch) >= 2 && contains(pkgArch, "any") {
			return p.finalErrorf("package %s cannot be arch-specific and arch-independent simultaneously", pkg.Name)
		}
		for _, key := range pkg.fields.keys {
			if err := p.checkSuffix(base, key); err != nil {
				return err
			}
		}
	}

	// source and checksum arrays must pair up
	for _, suffix := range base.ArchSuffixes() {
		sources := SourcesKey(suffix)
		if !base.fields.Has(sources) {
			continue
		}
		for _, algo := range ChecksumAlgorithms {
			checksums := ChecksumsKey(algo, suffix)
			if !base.fields.Has(checksums) {
				continue
			}
			if len(base.fields.values[sources]) != len(base.fields.values[checksums]) {
				return p.finalErrorf("%s and %s have different lengths", sources, checksums)
			}
		}
	}

	return nil
}

// checkSuffix rejects architecture-specific arrays for undeclared
// architectures.
func (p *parser) checkSuffix(base *Base, key string) error {
	suffix := archSuffix(key)
	if suffix == "" {
		return nil
	}
	if base.Any() || !contains(base.fields.values["arch"], suffix) {
		return p.finalErrorf("%s does not match any declared architecture", key)
	}
	return nil
}

// propagateDefaults copies every overridable base key into the packages
// that do not declare it themselves. Applying it again changes nothing.
func propagateDefaults(base *Base) {
	for _, key := range base.fields.keys {
		if !IsOverridable(key) {
			continue
		}
		for _, pkg := range base.packages {
			if pkg.fields.Has(key) {
				continue
			}
			pkg.fields.declare(key)
			pkg.fields.values[key] = append(pkg.fields.values[key], base.fields.values[key]...)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
