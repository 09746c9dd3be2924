package edit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/segyfix/internal/segy"
)

func encodedHeader(t *testing.T, lines []string) []byte {
	t.Helper()
	raw, _ := segy.EncodeTextualHeader(lines, segy.EncodingEBCDIC)
	return raw
}

func TestEbcdicLinesModeMergesSelectedLines(t *testing.T) {
	original := make([]string, segy.TextLines)
	for i := range original {
		original[i] = "ORIGINAL"
	}
	raw := encodedHeader(t, original)

	v, err := NewEbcdicHeaderView(raw, "test.sgy")
	require.NoError(t, err)

	op := &EbcdicEdit{Mode: EbcdicLines, Lines: map[int]string{
		0: "C01 NEW CLIENT",
		1: "C02 NEW AREA",
	}}
	require.NoError(t, op.validate())
	events := v.Apply(op)
	require.Len(t, events, 2)
	assert.Equal(t, "line_01", events[0].Field)
	assert.Equal(t, "ORIGINAL", events[0].Old)
	assert.Equal(t, "C01 NEW CLIENT", events[0].New)
	assert.Equal(t, RegionEbcdic, events[0].Region)

	// Untouched lines re-encode byte-identically.
	out := v.Encode()
	assert.Equal(t, raw[2*segy.TextCols:], out[2*segy.TextCols:])
	assert.NotEqual(t, raw[:segy.TextCols], out[:segy.TextCols])
}

func TestEbcdicTemplateModeReplacesAllLines(t *testing.T) {
	raw := encodedHeader(t, []string{"OLD"})
	v, err := NewEbcdicHeaderView(raw, "test.sgy")
	require.NoError(t, err)

	template := make([]string, segy.TextLines)
	for i := range template {
		template[i] = "TEMPLATE LINE"
	}
	op := &EbcdicEdit{Mode: EbcdicTemplate, Template: template}
	require.NoError(t, op.validate())

	events := v.Apply(op)
	assert.Len(t, events, segy.TextLines)
	for _, line := range v.Lines() {
		assert.Equal(t, "TEMPLATE LINE", strings.TrimRight(line, " "))
	}
}

func TestEbcdicTemplateRequiresFortyLines(t *testing.T) {
	op := &EbcdicEdit{Mode: EbcdicTemplate, Template: []string{"only one"}}
	assert.Error(t, op.validate())
}

func TestEbcdicLineIndexBounds(t *testing.T) {
	assert.Error(t, (&EbcdicEdit{Mode: EbcdicLines, Lines: map[int]string{40: "x"}}).validate())
	assert.Error(t, (&EbcdicEdit{Mode: EbcdicLines, Lines: map[int]string{-1: "x"}}).validate())
	assert.Error(t, (&EbcdicEdit{Mode: EbcdicLines}).validate())
}

func TestEbcdicPaddingAloneIsNotAChange(t *testing.T) {
	original := make([]string, segy.TextLines)
	original[3] = "SHORT"
	raw := encodedHeader(t, original)

	v, err := NewEbcdicHeaderView(raw, "test.sgy")
	require.NoError(t, err)

	op := &EbcdicEdit{Mode: EbcdicLines, Lines: map[int]string{3: "SHORT"}}
	require.NoError(t, op.validate())
	events := v.Apply(op)
	assert.Empty(t, events)
}

func TestEbcdicOverlongLineWarnsAtEncode(t *testing.T) {
	raw := encodedHeader(t, nil)
	v, err := NewEbcdicHeaderView(raw, "test.sgy")
	require.NoError(t, err)

	op := &EbcdicEdit{Mode: EbcdicLines, Lines: map[int]string{0: strings.Repeat("A", 120)}}
	require.NoError(t, op.validate())
	events := v.Apply(op)
	require.Len(t, events, 1)

	out := v.Encode()
	require.Len(t, out, segy.TextualHeaderSize)
	warned := false
	for _, w := range v.Warnings() {
		if strings.Contains(w, "truncated") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestEbcdicPreservesASCIIEncoding(t *testing.T) {
	raw := make([]byte, segy.TextualHeaderSize)
	for i := range raw {
		raw[i] = ' '
	}
	copy(raw, []byte("C01 ASCII HEADER"))

	v, err := NewEbcdicHeaderView(raw, "test.sgy")
	require.NoError(t, err)
	assert.Equal(t, segy.EncodingASCII, v.Encoding())

	op := &EbcdicEdit{Mode: EbcdicLines, Lines: map[int]string{1: "C02 ADDED"}}
	require.NoError(t, op.validate())
	v.Apply(op)

	out := v.Encode()
	assert.Equal(t, byte(' '), out[segy.TextualHeaderSize-1], "ASCII space padding preserved")
	assert.Equal(t, "C01 ASCII HEADER", string(out[:16]))
}
