// Package report renders run outputs: the CSV changelog, the Excel
// validation report, and the PDF summary with a provenance QR code.
package report

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"example.com/segyfix/internal/edit"
)

// changelogQueueSize bounds the changelog queue; producers block when the
// sink falls behind, which is the backpressure the engine relies on.
const changelogQueueSize = 1024

var changelogColumns = []string{
	"file", "timestamp", "trace_index_or_blank", "region", "field", "old_value", "new_value",
}

// Changelog is a serialized CSV sink for change events. A single goroutine
// owns the file; Record may be called from any worker.
type Changelog struct {
	f  *os.File
	w  *csv.Writer
	ch chan edit.ChangeEvent

	wg      sync.WaitGroup
	mu      sync.Mutex
	err     error
	records int64
}

// NewChangelog creates (truncating) the changelog at path and writes the
// header row.
func NewChangelog(path string) (*Changelog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c := &Changelog{
		f:  f,
		w:  csv.NewWriter(f),
		ch: make(chan edit.ChangeEvent, changelogQueueSize),
	}
	if err := c.w.Write(changelogColumns); err != nil {
		f.Close()
		return nil, err
	}
	c.wg.Add(1)
	go c.drain()
	return c, nil
}

func (c *Changelog) drain() {
	defer c.wg.Done()
	for ev := range c.ch {
		traceIdx := ""
		if ev.TraceIndex >= 0 {
			traceIdx = strconv.FormatInt(ev.TraceIndex, 10)
		}
		row := []string{
			ev.File,
			ev.Ts.Format(time.RFC3339),
			traceIdx,
			string(ev.Region),
			ev.Field,
			ev.Old,
			ev.New,
		}
		if err := c.w.Write(row); err != nil {
			c.mu.Lock()
			if c.err == nil {
				c.err = err
			}
			c.mu.Unlock()
			continue
		}
		c.mu.Lock()
		c.records++
		c.mu.Unlock()
	}
}

// Record enqueues one event, blocking when the queue is full.
func (c *Changelog) Record(ev edit.ChangeEvent) {
	c.ch <- ev
}

// Records returns the number of rows written so far.
func (c *Changelog) Records() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records
}

// Close drains the queue, flushes, and closes the file.
func (c *Changelog) Close() error {
	close(c.ch)
	c.wg.Wait()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	if err := c.f.Close(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
