package upbank

import (
	"strings"
	"unicode"
)

// emojiRanges covers the emoji blocks Up lets users put in account display
// names, plus the joiners and modifiers that ride along with them.
var emojiRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1}, // zero-width joiner
		{Lo: 0x20e3, Hi: 0x20e3, Stride: 1}, // combining enclosing keycap
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1}, // misc symbols, dingbats
		{Lo: 0x2b00, Hi: 0x2bff, Stride: 1}, // misc symbols and arrows
		{Lo: 0xfe00, Hi: 0xfe0f, Stride: 1}, // variation selectors
	},
	R32: []unicode.Range32{
		{Lo: 0x1f000, Hi: 0x1faff, Stride: 1}, // emoji planes
	},
}

// stripEmoji removes emoji runes from a display name. Up account names are
// conventionally "<emoji> <name>"; the ledger wants just the name.
func stripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(emojiRanges, r) {
			return -1
		}
		return r
	}, s)
}
