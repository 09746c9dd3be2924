package segy

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// The textual header uses the IBM-1047 flavour of EBCDIC. Old files written
// by ASCII-only tools exist; the decoder detects them and passes them through.
var ebcdic = charmap.CodePage1047

const (
	ebcdicSpace = 0x40
	asciiSpace  = 0x20
)

// TextEncoding identifies how a textual header is encoded on disk.
type TextEncoding string

const (
	EncodingEBCDIC TextEncoding = "EBCDIC"
	EncodingASCII  TextEncoding = "ASCII"
)

// DetectTextEncoding classifies a raw textual header by counting printable
// bytes under each interpretation.
func DetectTextEncoding(raw []byte) TextEncoding {
	if len(raw) < TextualHeaderSize {
		return EncodingASCII
	}
	var ebcdicPrintable, asciiPrintable int
	for _, b := range raw[:TextualHeaderSize] {
		if b >= 0x40 && b <= 0xFE {
			ebcdicPrintable++
		}
		if b >= 0x20 && b <= 0x7E {
			asciiPrintable++
		}
	}
	if ebcdicPrintable > asciiPrintable {
		return EncodingEBCDIC
	}
	return EncodingASCII
}

// DecodeTextualHeader decodes 3200 raw bytes into 40 lines of 80 characters.
// Unmappable bytes become U+FFFD and produce a warning message.
func DecodeTextualHeader(raw []byte, enc TextEncoding) ([]string, []string) {
	var warnings []string
	buf := make([]byte, TextualHeaderSize)
	copy(buf, raw)

	lines := make([]string, TextLines)
	badBytes := 0
	for i := 0; i < TextLines; i++ {
		var b strings.Builder
		b.Grow(TextCols)
		for _, c := range buf[i*TextCols : (i+1)*TextCols] {
			var r rune
			if enc == EncodingASCII {
				if c >= 0x20 && c <= 0x7E {
					r = rune(c)
				} else {
					r = '�'
					badBytes++
				}
			} else {
				r = ebcdic.DecodeByte(c)
				// The code page maps every byte, but control characters
				// have no place in a textual header.
				if r == utf8.RuneError || r < 0x20 || r == 0x7F {
					r = '�'
					badBytes++
				}
			}
			b.WriteRune(r)
		}
		lines[i] = b.String()
	}
	if badBytes > 0 {
		warnings = append(warnings, "textual header contains unmappable bytes; replaced with substitution character")
	}
	return lines, warnings
}

// EncodeTextualHeader encodes 40 lines back into 3200 bytes. Lines shorter
// than 80 characters are right-padded with the encoding's space; longer lines
// are truncated with a warning. Unmappable characters become the encoding's
// space.
func EncodeTextualHeader(lines []string, enc TextEncoding) ([]byte, []string) {
	var warnings []string
	pad := byte(ebcdicSpace)
	if enc == EncodingASCII {
		pad = asciiSpace
	}

	out := make([]byte, TextualHeaderSize)
	unmapped := false
	for i := 0; i < TextLines; i++ {
		row := out[i*TextCols : (i+1)*TextCols]
		for j := range row {
			row[j] = pad
		}
		if i >= len(lines) {
			continue
		}
		runes := []rune(lines[i])
		if len(runes) > TextCols {
			warnings = append(warnings, "textual header line "+lineLabel(i)+" exceeds 80 characters; truncated")
			runes = runes[:TextCols]
		}
		for j, r := range runes {
			if enc == EncodingASCII {
				if r >= 0x20 && r <= 0x7E {
					row[j] = byte(r)
				} else {
					row[j] = asciiSpace
					unmapped = true
				}
				continue
			}
			b, ok := ebcdic.EncodeRune(r)
			if !ok {
				b = ebcdicSpace
				unmapped = true
			}
			row[j] = b
		}
	}
	if unmapped {
		warnings = append(warnings, "textual header contains characters outside the code page; replaced with space")
	}
	return out, warnings
}

// lineLabel formats a 0-based line index as the conventional C01..C40 label.
func lineLabel(i int) string {
	return "C" + string([]byte{byte('0' + (i+1)/10), byte('0' + (i+1)%10)})
}

// FormatTextualLines renders the 40 lines with C01..C40 prefixes for display.
func FormatTextualLines(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(lineLabel(i))
		b.WriteByte(' ')
		b.WriteString(line)
	}
	return b.String()
}
