package segy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"example.com/segyfix/internal/common"
)

// FileInfo summarizes the fixed-layout metadata of an opened SEG-Y file.
type FileInfo struct {
	Path            string
	Filename        string
	FileSize        int64
	TextEncoding    TextEncoding
	FormatCode      int16
	BytesPerSample  int
	SamplesPerTrace int
	SampleInterval  int
	ExtendedHeaders int
	TraceCount      int64
	// LeftoverBytes is the remainder of the data region modulo the trace
	// record size. Non-zero means the file is structurally inconsistent.
	LeftoverBytes int64
	// CoordinateScalar is taken from the first trace header, 0 if no traces.
	CoordinateScalar int64
}

// ExpectedSize returns the file size implied by the header metadata, or 0
// when the metadata is unusable.
func (fi FileInfo) ExpectedSize() int64 {
	if fi.SamplesPerTrace <= 0 || fi.BytesPerSample <= 0 {
		return 0
	}
	traceBytes := int64(TraceHeaderSize + fi.SamplesPerTrace*fi.BytesPerSample)
	return int64(headerRegionSize) + int64(fi.ExtendedHeaders)*TextualHeaderSize + traceBytes*fi.TraceCount
}

// Trace is one record yielded by the reader. Header and Samples alias an
// internal buffer that is reused on the next call to Next; callers that
// retain them must copy.
type Trace struct {
	Index   int64
	Header  []byte
	Samples []byte
}

// Reader streams a SEG-Y file sequentially: textual header, binary header,
// optional extended textual headers, then traces. It never materializes more
// than one trace.
type Reader struct {
	f        *os.File
	br       *bufio.Reader
	info     FileInfo
	textual  []byte
	binary   []byte
	extended [][]byte

	payloadSize int
	traceBuf    []byte
	nextIndex   int64

	metrics *common.Metrics
}

// Open reads the header regions of the file at path and prepares the trace
// iterator. It fails with ErrTruncatedFile when the fixed headers do not fit.
// An unrecognized sample format does not fail Open; Next reports it as
// ErrUnknownFormatCode.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := st.Size()
	if size < headerRegionSize {
		f.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedFile, size)
	}

	r := &Reader{
		f:  f,
		br: bufio.NewReaderSize(f, 1<<20),
		info: FileInfo{
			Path:     path,
			Filename: filepath.Base(path),
			FileSize: size,
		},
	}
	if err := r.readHeaders(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeaders() error {
	r.textual = make([]byte, TextualHeaderSize)
	if _, err := io.ReadFull(r.br, r.textual); err != nil {
		return fmt.Errorf("%w: textual header", ErrTruncatedFile)
	}
	r.info.TextEncoding = DetectTextEncoding(r.textual)

	r.binary = make([]byte, BinaryHeaderSize)
	if _, err := io.ReadFull(r.br, r.binary); err != nil {
		return fmt.Errorf("%w: binary header", ErrTruncatedFile)
	}

	get := func(name string) int64 {
		f, _ := BinaryField(name)
		return f.Get(r.binary)
	}
	r.info.FormatCode = int16(get("format_code"))
	r.info.SamplesPerTrace = int(get("samples_per_trace"))
	r.info.SampleInterval = int(get("sample_interval"))
	ext := int(get("extended_textual_headers"))
	if ext < 0 {
		ext = 0
	}
	r.info.ExtendedHeaders = ext

	for i := 0; i < ext; i++ {
		buf := make([]byte, TextualHeaderSize)
		if _, err := io.ReadFull(r.br, buf); err != nil {
			return fmt.Errorf("%w: extended textual header %d", ErrTruncatedFile, i+1)
		}
		r.extended = append(r.extended, buf)
	}

	if bps, ok := BytesPerSample(r.info.FormatCode); ok {
		r.info.BytesPerSample = bps
	}
	dataBytes := r.info.FileSize - int64(headerRegionSize) - int64(ext)*TextualHeaderSize
	if r.info.BytesPerSample > 0 && r.info.SamplesPerTrace > 0 {
		traceBytes := int64(TraceHeaderSize + r.info.SamplesPerTrace*r.info.BytesPerSample)
		r.info.TraceCount = dataBytes / traceBytes
		r.info.LeftoverBytes = dataBytes % traceBytes
		r.payloadSize = r.info.SamplesPerTrace * r.info.BytesPerSample
	}

	if r.info.TraceCount > 0 {
		// Peek at the first trace header for the coordinate scalar without
		// disturbing the stream.
		firstHeader, err := r.br.Peek(TraceHeaderSize)
		if err == nil {
			scalar, _ := TraceField("coordinate_scalar")
			r.info.CoordinateScalar = scalar.Get(firstHeader)
		}
	}
	return nil
}

// Info returns the file summary derived from the header regions.
func (r *Reader) Info() FileInfo { return r.info }

// Textual returns the raw 3200-byte textual header.
func (r *Reader) Textual() []byte { return r.textual }

// BinaryHeader returns the raw 400-byte binary header.
func (r *Reader) BinaryHeader() []byte { return r.binary }

// Extended returns the raw extended textual headers, if any.
func (r *Reader) Extended() [][]byte { return r.extended }

// PayloadSize returns the per-trace sample payload size in bytes.
func (r *Reader) PayloadSize() int { return r.payloadSize }

// SetMetrics attaches a throughput recorder.
func (r *Reader) SetMetrics(m *common.Metrics) {
	r.metrics = m
	if m != nil {
		m.SetTotalBytes(r.info.FileSize)
	}
}

// Next yields the next trace. It returns io.EOF at a clean end of file,
// ErrUnknownFormatCode when the format code makes the payload size
// underivable, and ErrInconsistentSampleCount when a partial trace record is
// found at the tail.
func (r *Reader) Next() (Trace, error) {
	if r.f == nil {
		return Trace{}, io.EOF
	}
	// A header-only file ends cleanly regardless of its metadata.
	if _, err := r.br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return Trace{}, io.EOF
		}
		return Trace{}, err
	}
	if _, ok := BytesPerSample(r.info.FormatCode); !ok {
		return Trace{}, fmt.Errorf("%w: %d", ErrUnknownFormatCode, r.info.FormatCode)
	}
	if r.info.SamplesPerTrace <= 0 {
		return Trace{}, fmt.Errorf("%w: samples_per_trace=%d", ErrInconsistentSampleCount, r.info.SamplesPerTrace)
	}

	recordSize := TraceHeaderSize + r.payloadSize
	if r.traceBuf == nil {
		r.traceBuf = make([]byte, recordSize)
	}
	n, err := io.ReadFull(r.br, r.traceBuf)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return Trace{}, io.EOF
		}
		return Trace{}, fmt.Errorf("%w: trace %d is %d of %d bytes", ErrInconsistentSampleCount, r.nextIndex, n, recordSize)
	}

	t := Trace{
		Index:   r.nextIndex,
		Header:  r.traceBuf[:TraceHeaderSize],
		Samples: r.traceBuf[TraceHeaderSize:recordSize],
	}
	r.nextIndex++
	if r.metrics != nil {
		r.metrics.AddTrace(int64(recordSize))
	}
	return t, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
