package segy

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	lines := make([]string, TextLines)
	lines[0] = "C01 CLIENT ACME GEOPHYSICAL"
	lines[1] = "C02 LINE 1001 AREA NORTH SEA"
	lines[39] = "C40 END TEXTUAL HEADER"

	raw, warnings := EncodeTextualHeader(lines, EncodingEBCDIC)
	require.Len(t, raw, TextualHeaderSize)
	assert.Empty(t, warnings)

	decoded, warnings := DecodeTextualHeader(raw, EncodingEBCDIC)
	assert.Empty(t, warnings)
	require.Len(t, decoded, TextLines)
	assert.Equal(t, lines[0], strings.TrimRight(decoded[0], " "))
	assert.Equal(t, lines[1], strings.TrimRight(decoded[1], " "))
	assert.Equal(t, lines[39], strings.TrimRight(decoded[39], " "))
	for _, line := range decoded {
		assert.Len(t, line, TextCols)
	}
}

func TestEncodePadsShortLinesWithEbcdicSpace(t *testing.T) {
	lines := make([]string, TextLines)
	lines[5] = "ABC"

	raw, warnings := EncodeTextualHeader(lines, EncodingEBCDIC)
	assert.Empty(t, warnings)

	row := raw[5*TextCols : 6*TextCols]
	// Everything after the three characters is EBCDIC space.
	for i := 3; i < TextCols; i++ {
		assert.Equal(t, byte(0x40), row[i])
	}
	assert.NotEqual(t, byte(0x40), row[0])
}

func TestEncodeTruncatesLongLinesWithWarning(t *testing.T) {
	lines := make([]string, TextLines)
	lines[2] = strings.Repeat("X", 120)

	raw, warnings := EncodeTextualHeader(lines, EncodingEBCDIC)
	require.Len(t, raw, TextualHeaderSize)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "truncated")

	decoded, _ := DecodeTextualHeader(raw, EncodingEBCDIC)
	assert.Equal(t, strings.Repeat("X", TextCols), decoded[2])
}

func TestEncodeReplacesUnmappableWithSpace(t *testing.T) {
	lines := make([]string, TextLines)
	lines[0] = "SNOW☃MAN"

	raw, warnings := EncodeTextualHeader(lines, EncodingEBCDIC)
	require.NotEmpty(t, warnings)

	decoded, _ := DecodeTextualHeader(raw, EncodingEBCDIC)
	assert.Equal(t, "SNOW MAN", strings.TrimRight(decoded[0], " "))
}

func TestDecodeSubstitutesControlBytes(t *testing.T) {
	raw := bytes.Repeat([]byte{0x40}, TextualHeaderSize)
	raw[10] = 0x00

	decoded, warnings := DecodeTextualHeader(raw, EncodingEBCDIC)
	require.NotEmpty(t, warnings)
	assert.Equal(t, '�', []rune(decoded[0])[10])
}

func TestDetectTextEncoding(t *testing.T) {
	ebcdicRaw, _ := EncodeTextualHeader([]string{"CLIENT DATA"}, EncodingEBCDIC)
	assert.Equal(t, EncodingEBCDIC, DetectTextEncoding(ebcdicRaw))

	asciiRaw := bytes.Repeat([]byte{' '}, TextualHeaderSize)
	copy(asciiRaw, []byte("C01 CLIENT DATA"))
	assert.Equal(t, EncodingASCII, DetectTextEncoding(asciiRaw))

	assert.Equal(t, EncodingASCII, DetectTextEncoding(nil))
}

func TestFormatTextualLines(t *testing.T) {
	lines := make([]string, TextLines)
	lines[0] = "FIRST"
	out := FormatTextualLines(lines)
	assert.True(t, strings.HasPrefix(out, "C01 FIRST"))
	assert.Contains(t, out, "\nC40 ")
}
