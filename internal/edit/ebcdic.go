package edit

import (
	"fmt"
	"strings"
	"time"

	"example.com/segyfix/internal/segy"
)

// EbcdicHeaderView holds the textual header as 40 decoded lines plus the
// encoding detected on read, so the header goes back to disk in the same
// code page it arrived in.
type EbcdicHeaderView struct {
	lines    []string
	encoding segy.TextEncoding
	file     string
	warnings []string
}

// NewEbcdicHeaderView decodes a raw 3200-byte textual header.
func NewEbcdicHeaderView(raw []byte, file string) (*EbcdicHeaderView, error) {
	if len(raw) != segy.TextualHeaderSize {
		return nil, fmt.Errorf("textual header must be %d bytes, got %d", segy.TextualHeaderSize, len(raw))
	}
	enc := segy.DetectTextEncoding(raw)
	lines, warnings := segy.DecodeTextualHeader(raw, enc)
	return &EbcdicHeaderView{lines: lines, encoding: enc, file: file, warnings: warnings}, nil
}

// Lines returns the current 40 decoded lines.
func (v *EbcdicHeaderView) Lines() []string {
	out := make([]string, len(v.lines))
	copy(out, v.lines)
	return out
}

// Encoding returns the detected textual encoding.
func (v *EbcdicHeaderView) Encoding() segy.TextEncoding { return v.encoding }

// Warnings returns codec warnings accumulated while decoding and encoding.
func (v *EbcdicHeaderView) Warnings() []string { return v.warnings }

// Apply merges a validated EbcdicEdit into the view and returns one change
// event per modified line.
func (v *EbcdicHeaderView) Apply(op *EbcdicEdit) []ChangeEvent {
	before := v.lines
	after := make([]string, segy.TextLines)
	copy(after, before)

	switch op.Mode {
	case EbcdicTemplate:
		copy(after, op.Template)
	case EbcdicLines:
		for idx, text := range op.Lines {
			after[idx] = text
		}
	}
	// Pad to the 80-column grid before diffing so padding alone never reads
	// as a change. Overlong lines stay intact here; the codec truncates them
	// with a warning at encode time.
	for i := range after {
		after[i] = padLine(after[i])
	}

	var events []ChangeEvent
	for i := 0; i < segy.TextLines; i++ {
		if before[i] != after[i] {
			events = append(events, ChangeEvent{
				File:       v.file,
				Ts:         time.Now(),
				Region:     RegionEbcdic,
				Field:      fmt.Sprintf("line_%02d", i+1),
				TraceIndex: -1,
				Old:        strings.TrimRight(before[i], " "),
				New:        strings.TrimRight(after[i], " "),
			})
		}
	}
	v.lines = after
	return events
}

// Encode renders the view back to 3200 bytes in its original encoding.
func (v *EbcdicHeaderView) Encode() []byte {
	raw, warnings := segy.EncodeTextualHeader(v.lines, v.encoding)
	v.warnings = append(v.warnings, warnings...)
	return raw
}

func padLine(s string) string {
	if n := len([]rune(s)); n < segy.TextCols {
		return s + strings.Repeat(" ", segy.TextCols-n)
	}
	return s
}
