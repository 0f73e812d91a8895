package config

import "strings"

// invalidNameChars are the characters no mainstream filesystem accepts in a
// file name. The set is fixed so cache keys match across platforms.
const invalidNameChars = `<>:"/\|?*`

// CacheKey turns an asset name into the file name it is cached under by
// replacing every illegal character with '_'. It is deterministic and never
// returns "." or "..".
func CacheKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(invalidNameChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}

	out := b.String()
	switch out {
	case "":
		return "_"
	case ".", "..":
		return strings.Repeat("_", len(out))
	}
	return out
}
