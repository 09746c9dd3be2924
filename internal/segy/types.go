package segy

import "errors"

const (
	// TextualHeaderSize is the fixed size of the EBCDIC textual header.
	TextualHeaderSize = 3200
	// BinaryHeaderSize is the fixed size of the binary file header.
	BinaryHeaderSize = 400
	// TraceHeaderSize is the fixed size of every trace header.
	TraceHeaderSize = 240

	// TextLines and TextCols describe the textual header layout.
	TextLines = 40
	TextCols  = 80

	headerRegionSize = TextualHeaderSize + BinaryHeaderSize
)

var (
	ErrTruncatedFile           = errors.New("file too small for SEG-Y headers")
	ErrInconsistentSampleCount = errors.New("file size inconsistent with trace layout")
	ErrUnknownFormatCode       = errors.New("unknown sample format code")
	ErrOutOfRange              = errors.New("value out of range for field width")
	ErrUnknownField            = errors.New("unknown header field")
)

// formatBytes maps a binary-header format code to bytes per sample.
// Code 6 (IEEE double) is rare but appears in the wild.
var formatBytes = map[int16]int{
	1: 4, // IBM float
	2: 4, // 4-byte integer
	3: 2, // 2-byte integer
	4: 4, // fixed point with gain
	5: 4, // IEEE float
	6: 8, // IEEE double
	8: 1, // 1-byte integer
}

// BytesPerSample returns the sample width for a format code.
func BytesPerSample(code int16) (int, bool) {
	n, ok := formatBytes[code]
	return n, ok
}

// FormatName returns a human-readable label for a format code.
func FormatName(code int16) string {
	switch code {
	case 1:
		return "IBM Float (4-byte)"
	case 2:
		return "4-byte Integer"
	case 3:
		return "2-byte Integer"
	case 4:
		return "Fixed Point with Gain (4-byte)"
	case 5:
		return "IEEE Float (4-byte)"
	case 6:
		return "IEEE Double (8-byte)"
	case 8:
		return "1-byte Integer"
	default:
		return "Unknown"
	}
}
