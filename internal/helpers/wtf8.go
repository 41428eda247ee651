package helpers

import (
	"strings"
	"unicode/utf8"
)

// JavaScript strings are sequences of UTF-16 code units and may contain
// unpaired surrogates. They are stored in Go strings as WTF-8, which is UTF-8
// extended to encode a lone surrogate the same way UTF-8 would encode any
// other code point in that range.

func isHighSurrogate(c rune) bool { return c >= 0xD800 && c <= 0xDBFF }
func isLowSurrogate(c rune) bool  { return c >= 0xDC00 && c <= 0xDFFF }

func UTF16ToString(text []uint16) string {
	result, _, _ := utf16ToWTF8(text, false)
	return result
}

// Like "UTF16ToString" but fails on an unpaired surrogate, which is returned
// along with false. Module export names must be well-formed.
func UTF16ToStringWithValidation(text []uint16) (string, uint16, bool) {
	return utf16ToWTF8(text, true)
}

func utf16ToWTF8(text []uint16, strict bool) (string, uint16, bool) {
	b := strings.Builder{}
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := rune(text[i])
		if isHighSurrogate(c) && i+1 < len(text) && isLowSurrogate(rune(text[i+1])) {
			c = (c-0xD800)<<10 | (rune(text[i+1]) - 0xDC00) + 0x10000
			i++
		} else if strict && (isHighSurrogate(c) || isLowSurrogate(c)) {
			return "", uint16(c), false
		}
		b.WriteString(encodeWTF8Rune(c))
	}
	return b.String(), 0, true
}

func encodeWTF8Rune(c rune) string {
	// The standard encoder turns surrogates into U+FFFD
	if isHighSurrogate(c) || isLowSurrogate(c) {
		return string([]byte{0xE0 | byte(c>>12), 0x80 | byte(c>>6)&0x3F, 0x80 | byte(c)&0x3F})
	}
	return string(c)
}

// DecodeWTF8Rune is "utf8.DecodeRuneInString" that also accepts the
// three-byte encodings of surrogates
func DecodeWTF8Rune(s string) (rune, int) {
	c, width := utf8.DecodeRuneInString(s)
	if c == utf8.RuneError && width == 1 && len(s) >= 3 && s[0] == 0xED &&
		s[1] >= 0xA0 && s[1] <= 0xBF && s[2]&0xC0 == 0x80 {
		return 0xD000 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), 3
	}
	return c, width
}
