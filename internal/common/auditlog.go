package common

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEntry captures a single byte-range mutation applied to an output
// file. Before/after bytes are stored as hex so the edit can be replayed or
// reverted without reparsing the file.
type AuditEntry struct {
	Region     string    `json:"region"` // ebcdic|binary|trace
	Field      string    `json:"field,omitempty"`
	TraceIndex int64     `json:"traceIndex,omitempty"`
	Offset     int64     `json:"offset"`
	BeforeHex  string    `json:"beforeHex"`
	AfterHex   string    `json:"afterHex"`
	Ts         time.Time `json:"ts"`
}

// BeforeBytes decodes the bytes present before the edit was applied.
func (e AuditEntry) BeforeBytes() ([]byte, error) {
	if strings.TrimSpace(e.BeforeHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(e.BeforeHex)
}

// AfterBytes decodes the bytes written by the edit.
func (e AuditEntry) AfterBytes() ([]byte, error) {
	if strings.TrimSpace(e.AfterHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(e.AfterHex)
}

// AuditLog is a JSONL audit sink for one edit run. The file is opened once
// and held for the run; appends from the engine's pooled workers serialize
// on a mutex and go through a buffered encoder, so a large trace edit does
// not pay a syscall per entry. Durability comes from Close, which flushes
// and fsyncs before the engine reports success.
type AuditLog struct {
	path string

	mu  sync.Mutex
	f   *os.File
	bw  *bufio.Writer
	enc *json.Encoder
	n   int64
}

// CreateAuditLog creates (truncating) the audit file at path.
func CreateAuditLog(path string) (*AuditLog, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(f)
	return &AuditLog{path: path, f: f, bw: bw, enc: json.NewEncoder(bw)}, nil
}

// Path returns the backing file path for the log.
func (l *AuditLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Entries returns the number of entries appended so far.
func (l *AuditLog) Entries() int64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Append records one entry, stamping the timestamp if unset.
func (l *AuditLog) Append(entry AuditEntry) error {
	if l == nil {
		return errors.New("nil audit log")
	}
	if entry.Region == "" {
		return errors.New("audit entry missing region")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return errors.New("audit log is closed")
	}
	if err := l.enc.Encode(entry); err != nil {
		return err
	}
	l.n++
	return nil
}

// Close flushes buffered entries and syncs the file to disk.
func (l *AuditLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	flushErr := l.bw.Flush()
	if err := l.f.Sync(); flushErr == nil {
		flushErr = err
	}
	if err := l.f.Close(); flushErr == nil {
		flushErr = err
	}
	l.f = nil
	return flushErr
}

// ReadAuditLog loads every entry from the supplied JSONL file.
func ReadAuditLog(path string) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	var entries []AuditEntry
	for {
		var entry AuditEntry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("decode audit entry %d: %w", len(entries), err)
		}
		entries = append(entries, entry)
	}
}
