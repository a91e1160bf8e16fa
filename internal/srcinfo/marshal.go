package srcinfo

import (
	"bytes"
	"fmt"
)

// Marshal renders b in the layout makepkg --printsrcinfo uses. Packages
// only list the keys they override.
func (b *Base) Marshal() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "pkgbase = %s\n", b.Name)
	writeFields(&buf, b.fields, b.fields.keys)

	for _, p := range b.packages {
		fmt.Fprintf(&buf, "\npkgname = %s\n", p.Name)
		writeFields(&buf, p.fields, p.overrides)
	}

	return buf.Bytes()
}

func writeFields(buf *bytes.Buffer, f Fields, keys []string) {
	for _, key := range keys {
		values := f.values[key]
		if len(values) == 0 {
			// an empty override clears the inherited value
			fmt.Fprintf(buf, "\t%s = \n", key)
			continue
		}
		for _, v := range values {
			fmt.Fprintf(buf, "\t%s = %s\n", key, v)
		}
	}
}
