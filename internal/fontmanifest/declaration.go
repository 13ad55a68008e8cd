package fontmanifest

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultWeight is the font weight emitted for every family.
const DefaultWeight = 400

// Declaration is one font-face include directive.
type Declaration struct {
	Family   string
	FileBase string
	Weight   int
}

// String renders the declaration as a style-language include directive,
// without the trailing line terminator.
func (d Declaration) String() string {
	return fmt.Sprintf("@include font-face(%s, %s, %d);", quote(d.Family), quote(d.FileBase), d.Weight)
}

// quote renders s as a double-quoted style sheet string. Quotes and
// backslashes are backslash-escaped; control characters use hex escapes.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FamilyID returns the part of a font file name before its first dot.
func FamilyID(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Declarations maps directory entry names to unique declarations. Entries are
// sorted by name first so the output does not depend on listing order.
// Entries without a family id (dotfiles) or whose id is not valid UTF-8 are
// skipped.
func Declarations(entries []string) []Declaration {
	names := append([]string(nil), entries...)
	sort.Strings(names)

	seen := make(map[string]struct{}, len(names))
	decls := make([]Declaration, 0, len(names))
	for _, name := range names {
		id := FamilyID(name)
		if id == "" || !utf8.ValidString(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		decls = append(decls, Declaration{Family: id, FileBase: id, Weight: DefaultWeight})
	}
	return decls
}
