package helpers

import "unicode/utf8"

const hexChars = "0123456789ABCDEF"
const firstASCII = 0x20
const lastASCII = 0x7E
const firstHighSurrogate = 0xD800
const firstLowSurrogate = 0xDC00
const lastLowSurrogate = 0xDFFF

func canPrintWithoutEscape(c rune) bool {
	if c <= lastASCII {
		return c >= firstASCII && c != '\\' && c != '"'
	}

	// These are line terminators in JavaScript strings before ES2019 and are
	// escaped so that generated code stays on one line
	return c != '\u2028' && c != '\u2029' && c != '\uFEFF' && (c < firstHighSurrogate || c > lastLowSurrogate)
}

// QuoteForJSON returns a double-quoted string literal that is valid both as
// JSON and as JavaScript. The input is WTF-8, so unpaired surrogates survive
// the round trip as "\u" escapes.
func QuoteForJSON(text string) []byte {
	// Estimate the required length
	lenEstimate := 2
	for _, c := range text {
		if canPrintWithoutEscape(c) {
			lenEstimate += utf8.RuneLen(c)
		} else {
			lenEstimate += 6
		}
	}

	bytes := make([]byte, 0, lenEstimate)
	i := 0
	n := len(text)
	bytes = append(bytes, '"')

	for i < n {
		c, width := DecodeWTF8Rune(text[i:])

		// Fast path: a run of characters that don't need escaping
		if canPrintWithoutEscape(c) {
			start := i
			i += width
			for i < n {
				c, width = DecodeWTF8Rune(text[i:])
				if !canPrintWithoutEscape(c) {
					break
				}
				i += width
			}
			bytes = append(bytes, text[start:i]...)
			continue
		}

		i += width
		switch c {
		case '\b':
			bytes = append(bytes, "\\b"...)
		case '\f':
			bytes = append(bytes, "\\f"...)
		case '\n':
			bytes = append(bytes, "\\n"...)
		case '\r':
			bytes = append(bytes, "\\r"...)
		case '\t':
			bytes = append(bytes, "\\t"...)
		case '\\':
			bytes = append(bytes, "\\\\"...)
		case '"':
			bytes = append(bytes, "\\\""...)
		default:
			bytes = append(bytes, '\\', 'u', hexChars[c>>12], hexChars[(c>>8)&15], hexChars[(c>>4)&15], hexChars[c&15])
		}
	}

	return append(bytes, '"')
}
