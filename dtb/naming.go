package dtb

import (
	"fmt"
	"path"
	"strings"
)

// The canonical metadata-derived filename, before any collision suffix.
// Example: zuma-b0-ipop.dtb
func (t NameTokens) CanonicalName() string {
	return fmt.Sprintf("%s-%s-%s.dtb", t.Board, t.Desc1, t.Desc2)
}

// NameRegistry counts how many times each canonical name was handed out
// within a single extraction run. It is a plain value owned by the run, so
// two runs in one process can never interfere; create a fresh one per run.
type NameRegistry map[string]int

// Resolve a canonical base name against the registry: the first use keeps
// the base name, later uses get _1, _2, ... appended before the extension.
func (r NameRegistry) Resolve(base string) string {
	count, seen := r[base]
	if !seen {
		r[base] = 0
		return base
	}
	count++
	r[base] = count
	ext := path.Ext(base)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), count, ext)
}

// The name used when a blob couldn't be decoded at all. Index is the blob's
// zero-based discovery order, which makes the name unique without touching
// the registry. Note the underscore: unknown_00.dtb is deliberately distinct
// from a metadata-derived unknown-unk-unk.dtb.
func FallbackName(index int) string {
	return fmt.Sprintf("unknown_%02d.dtb", index)
}
