package segy

import (
	"bufio"
	"fmt"
	"os"
)

// Writer streams a SEG-Y file out in the same region order the reader
// consumes it. Every region write is size-checked so a bug upstream cannot
// silently shift the trace layout. A discard writer counts bytes without
// persisting anything, which backs dry-run mode.
type Writer struct {
	f  *os.File
	bw *bufio.Writer

	payloadSize    int
	payloadSizeSet bool

	textualDone bool
	binaryDone  bool

	traces int64
	bytes  int64
}

// NewWriter creates (truncating) the file at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, bw: bufio.NewWriterSize(f, 1<<20)}, nil
}

// NewDiscardWriter returns a writer that accounts for every write but
// persists nothing.
func NewDiscardWriter() *Writer {
	return &Writer{}
}

// SetPayloadSize fixes the per-trace sample payload size all subsequent
// WriteTrace calls must match.
func (w *Writer) SetPayloadSize(n int) {
	w.payloadSize = n
	w.payloadSizeSet = true
}

func (w *Writer) write(p []byte) error {
	w.bytes += int64(len(p))
	if w.bw == nil {
		return nil
	}
	_, err := w.bw.Write(p)
	return err
}

// WriteTextual writes the 3200-byte textual header.
func (w *Writer) WriteTextual(b []byte) error {
	if w.textualDone {
		return fmt.Errorf("segy: textual header already written")
	}
	if len(b) != TextualHeaderSize {
		return fmt.Errorf("segy: textual header must be %d bytes, got %d", TextualHeaderSize, len(b))
	}
	w.textualDone = true
	return w.write(b)
}

// WriteBinaryHeader writes the 400-byte binary header.
func (w *Writer) WriteBinaryHeader(b []byte) error {
	if !w.textualDone {
		return fmt.Errorf("segy: binary header written before textual header")
	}
	if w.binaryDone {
		return fmt.Errorf("segy: binary header already written")
	}
	if len(b) != BinaryHeaderSize {
		return fmt.Errorf("segy: binary header must be %d bytes, got %d", BinaryHeaderSize, len(b))
	}
	w.binaryDone = true
	return w.write(b)
}

// WriteExtended writes one 3200-byte extended textual header.
func (w *Writer) WriteExtended(b []byte) error {
	if !w.binaryDone {
		return fmt.Errorf("segy: extended header written before binary header")
	}
	if len(b) != TextualHeaderSize {
		return fmt.Errorf("segy: extended header must be %d bytes, got %d", TextualHeaderSize, len(b))
	}
	return w.write(b)
}

// WriteTrace writes one trace record. The sample buffer length must match
// the payload size fixed by SetPayloadSize.
func (w *Writer) WriteTrace(header, samples []byte) error {
	if !w.binaryDone {
		return fmt.Errorf("segy: trace written before headers")
	}
	if len(header) != TraceHeaderSize {
		return fmt.Errorf("segy: trace header must be %d bytes, got %d", TraceHeaderSize, len(header))
	}
	if !w.payloadSizeSet {
		return fmt.Errorf("segy: payload size not set before writing traces")
	}
	if len(samples) != w.payloadSize {
		return fmt.Errorf("segy: trace payload must be %d bytes, got %d", w.payloadSize, len(samples))
	}
	if err := w.write(header); err != nil {
		return err
	}
	if err := w.write(samples); err != nil {
		return err
	}
	w.traces++
	return nil
}

// Traces returns the number of trace records written.
func (w *Writer) Traces() int64 { return w.traces }

// Bytes returns the total bytes written (or counted, in discard mode).
func (w *Writer) Bytes() int64 { return w.bytes }

// Close flushes buffers and syncs the file to disk.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	err := w.f.Close()
	w.f = nil
	return err
}
