package helpers

import (
	"testing"

	"github.com/evanw/esmloader/internal/test"
)

func TestUTF16ToString(t *testing.T) {
	test.AssertEqual(t, UTF16ToString([]uint16{'a', 'b'}), "ab")
	test.AssertEqual(t, UTF16ToString([]uint16{0xD83D, 0xDE00}), "\U0001F600")
	test.AssertEqual(t, UTF16ToString([]uint16{0xD800}), "\xED\xA0\x80")
	test.AssertEqual(t, UTF16ToString([]uint16{0xDFFF, 'x'}), "\xED\xBF\xBFx")

	_, _, ok := UTF16ToStringWithValidation([]uint16{'a', 0xD83D, 0xDE00})
	test.AssertEqual(t, ok, true)
	_, unpaired, ok := UTF16ToStringWithValidation([]uint16{'a', 0xD83D, 'b'})
	test.AssertEqual(t, ok, false)
	test.AssertEqual(t, unpaired, uint16(0xD83D))
	_, unpaired, ok = UTF16ToStringWithValidation([]uint16{0xDE00})
	test.AssertEqual(t, ok, false)
	test.AssertEqual(t, unpaired, uint16(0xDE00))
}

func TestDecodeWTF8Rune(t *testing.T) {
	c, width := DecodeWTF8Rune("\xED\xA0\x80")
	test.AssertEqual(t, c, rune(0xD800))
	test.AssertEqual(t, width, 3)

	c, width = DecodeWTF8Rune("\u00e9")
	test.AssertEqual(t, c, rune(0xE9))
	test.AssertEqual(t, width, 2)

	c, width = DecodeWTF8Rune("\xFF")
	test.AssertEqual(t, c, rune(0xFFFD))
	test.AssertEqual(t, width, 1)
}

func TestQuoteForJSON(t *testing.T) {
	check := func(input string, expected string) {
		t.Helper()
		test.AssertEqual(t, string(QuoteForJSON(input)), expected)
	}

	check("", `""`)
	check("abc", `"abc"`)
	check("a\"b\\c", `"a\"b\\c"`)
	check("\n\t\x00", `"\n\t\u0000"`)
	check("\u2028", `"\u2028"`)
	check("\xED\xA0\x80", `"\uD800"`)
	check("\U0001F600", "\"\U0001F600\"")
}

func TestJoiner(t *testing.T) {
	j := Joiner{}
	test.AssertEqual(t, string(j.Done()), "")

	j.AddString("a")
	j.AddBytes([]byte("bc"))
	j.AddString("")
	j.AddString("d")
	test.AssertEqual(t, string(j.Done()), "abcd")
}
