// Package engine executes an edit plan against one or more SEG-Y files:
// open, validate, then a single streaming pass that rewrites the three
// header regions while copying sample payloads verbatim. In-place output
// goes through a sibling temp file that is atomically renamed on success;
// any failure leaves the original untouched.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"example.com/segyfix/internal/common"
	"example.com/segyfix/internal/edit"
	"example.com/segyfix/internal/report"
	"example.com/segyfix/internal/segy"
	"example.com/segyfix/internal/validate"
)

// Status classifies the outcome of one file.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
	StatusSkipped = "SKIPPED"
)

// Result is the outcome of running the plan on one file.
type Result struct {
	File       string
	Path       string
	OutputPath string
	Status     string
	Message    string
	Findings   []validate.Finding
	Traces     int64
	Changes    int64
	Duration   time.Duration
	Err        error
}

// Engine runs a validated plan. The changelog and audit sinks are shared
// across workers; both serialize internally.
type Engine struct {
	plan      *edit.Plan
	changelog *report.Changelog
	audit     *common.AuditLog
	metrics   *common.Metrics
	workers   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithChangelog attaches the CSV changelog sink.
func WithChangelog(c *report.Changelog) Option {
	return func(e *Engine) { e.changelog = c }
}

// WithAuditLog attaches the JSONL audit log used by undo.
func WithAuditLog(a *common.AuditLog) Option {
	return func(e *Engine) { e.audit = a }
}

// WithMetrics attaches throughput counters.
func WithMetrics(m *common.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWorkers bounds the file-level worker pool. Default is one; trace
// streaming within a file is always sequential.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New builds an engine for a plan that has passed Validate.
func New(plan *edit.Plan, opts ...Option) *Engine {
	e := &Engine{plan: plan, workers: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes every path, dispatching to at most the configured number of
// workers. Results come back in input order.
func (e *Engine) Run(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))
	if len(paths) == 0 {
		return results
	}
	workers := e.workers
	if workers > len(paths) {
		workers = len(paths)
	}

	type job struct {
		idx  int
		path string
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = e.runFile(ctx, j.path)
			}
		}()
	}
	for i, p := range paths {
		jobs <- job{idx: i, path: p}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (e *Engine) runFile(ctx context.Context, path string) Result {
	start := time.Now()
	res := Result{File: filepath.Base(path), Path: path, Status: StatusSuccess}
	defer func() {
		res.Duration = time.Since(start)
	}()

	if e.plan.Validations.Any() {
		findings, err := validate.Run(path, e.plan.Validations)
		res.Findings = findings
		if err != nil {
			res.Status = StatusFailure
			res.Err = err
			res.Message = err.Error()
			return res
		}
		if validate.HasErrors(findings) && !e.plan.DryRun {
			res.Status = StatusSkipped
			res.Message = "validation reported errors; no output written"
			return res
		}
	}

	if err := e.editFile(ctx, path, &res); err != nil {
		res.Status = StatusFailure
		res.Err = err
		res.Message = err.Error()
		return res
	}
	res.Message = fmt.Sprintf("%d changes applied", res.Changes)
	return res
}

// output describes where the streaming pass writes and how to finish it.
type output struct {
	writer  *segy.Writer
	tmpPath string // non-empty for in-place mode
	path    string // final path, "" in discard mode
}

func (e *Engine) openOutput(path string) (*output, error) {
	if e.plan.DryRun || e.plan.OutputMode == edit.OutputDiscard {
		return &output{writer: segy.NewDiscardWriter()}, nil
	}
	switch e.plan.OutputMode {
	case edit.OutputInPlace:
		tmp := fmt.Sprintf("%s.tmp%d", path, os.Getpid())
		w, err := segy.NewWriter(tmp)
		if err != nil {
			return nil, err
		}
		return &output{writer: w, tmpPath: tmp, path: path}, nil
	case edit.OutputSeparateFolder:
		if err := os.MkdirAll(e.plan.OutputDir, 0o755); err != nil {
			return nil, err
		}
		out := filepath.Join(e.plan.OutputDir, filepath.Base(path))
		w, err := segy.NewWriter(out)
		if err != nil {
			return nil, err
		}
		return &output{writer: w, path: out}, nil
	}
	return nil, fmt.Errorf("unknown output mode %q", e.plan.OutputMode)
}

// discard removes any partial output after a failure.
func (o *output) discard() {
	o.writer.Close()
	if o.tmpPath != "" {
		os.Remove(o.tmpPath)
	} else if o.path != "" {
		os.Remove(o.path)
	}
}

// commit finishes the output; for in-place mode this is the atomic swap.
func (o *output) commit() error {
	if err := o.writer.Close(); err != nil {
		return err
	}
	if o.tmpPath != "" {
		return os.Rename(o.tmpPath, o.path)
	}
	return nil
}

func (e *Engine) editFile(ctx context.Context, path string, res *Result) (err error) {
	r, err := segy.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	if e.metrics != nil {
		r.SetMetrics(e.metrics)
	}
	info := r.Info()

	out, err := e.openOutput(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.discard()
		}
	}()
	res.OutputPath = out.path

	file := info.Filename
	emit := func(events []edit.ChangeEvent) {
		res.Changes += int64(len(events))
		if e.changelog != nil {
			for _, ev := range events {
				e.changelog.Record(ev)
			}
		}
	}

	// Textual header.
	textView, err := edit.NewEbcdicHeaderView(r.Textual(), file)
	if err != nil {
		return err
	}
	for _, op := range e.plan.Edits {
		if eb, ok := op.(*edit.EbcdicEdit); ok {
			emit(textView.Apply(eb))
		}
	}
	newTextual := textView.Encode()
	for _, w := range textView.Warnings() {
		common.Logf("%s: %s", file, w)
	}
	if err := out.writer.WriteTextual(newTextual); err != nil {
		return err
	}
	e.auditRegion("ebcdic", "", -1, 0, r.Textual(), newTextual)

	// Binary header.
	binView, err := edit.NewBinaryHeaderView(r.BinaryHeader(), file)
	if err != nil {
		return err
	}
	for _, op := range e.plan.Edits {
		if bh, ok := op.(*edit.BinaryHeaderEdit); ok {
			events, err := binView.Apply(bh)
			emit(events)
			if err != nil {
				return err
			}
		}
	}
	if err := out.writer.WriteBinaryHeader(binView.Bytes()); err != nil {
		return err
	}
	e.auditRegion("binary", "", -1, segy.TextualHeaderSize, r.BinaryHeader(), binView.Bytes())

	// Extended textual headers pass through unchanged.
	for _, ext := range r.Extended() {
		if err := out.writer.WriteExtended(ext); err != nil {
			return err
		}
	}

	// Traces.
	out.writer.SetPayloadSize(r.PayloadSize())
	te := edit.NewTraceEditor(e.plan, file, info.TraceCount)
	dataStart := int64(segy.TextualHeaderSize+segy.BinaryHeaderSize) + int64(info.ExtendedHeaders)*segy.TextualHeaderSize
	recordSize := int64(segy.TraceHeaderSize + r.PayloadSize())

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled at trace %d: %w", res.Traces, ctx.Err())
		default:
		}
		trace, rerr := r.Next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
		events, eerr := te.EditTrace(trace.Header, trace.Index)
		emit(events)
		if eerr != nil {
			return eerr
		}
		if err := out.writer.WriteTrace(trace.Header, trace.Samples); err != nil {
			return err
		}
		res.Traces++
		e.auditTraceEvents(events, dataStart+trace.Index*recordSize)
	}

	if err := out.commit(); err != nil {
		return err
	}
	if te.Skipped() > 0 {
		common.Logf("%s: %d field edit(s) skipped under on_error=%s", file, te.Skipped(), e.plan.OnError)
	}
	return nil
}

// auditRegion records a whole-region mutation when auditing is enabled and
// the bytes actually changed.
func (e *Engine) auditRegion(region, field string, traceIndex, offset int64, before, after []byte) {
	if e.audit == nil || e.plan.DryRun {
		return
	}
	if bytes.Equal(before, after) {
		return
	}
	entry := common.AuditEntry{
		Region:     region,
		Field:      field,
		TraceIndex: traceIndex,
		Offset:     offset,
		BeforeHex:  fmt.Sprintf("%x", before),
		AfterHex:   fmt.Sprintf("%x", after),
	}
	if err := e.audit.Append(entry); err != nil {
		common.Logf("audit append failed: %v", err)
	}
}

// auditTraceEvents reconstructs the mutated byte ranges of one trace header
// from its change events.
func (e *Engine) auditTraceEvents(events []edit.ChangeEvent, traceStart int64) {
	if e.audit == nil || e.plan.DryRun || len(events) == 0 {
		return
	}
	for _, ev := range events {
		f, ok := segy.TraceField(ev.Field)
		if !ok {
			continue
		}
		oldV, err1 := strconv.ParseInt(ev.Old, 10, 64)
		newV, err2 := strconv.ParseInt(ev.New, 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		before := make([]byte, f.Width)
		after := make([]byte, f.Width)
		scratch := segy.Field{Name: f.Name, Offset: 1, Width: f.Width, Signed: f.Signed}
		if scratch.Put(before, oldV) != nil || scratch.Put(after, newV) != nil {
			continue
		}
		entry := common.AuditEntry{
			Region:     "trace",
			Field:      ev.Field,
			TraceIndex: ev.TraceIndex,
			Offset:     traceStart + int64(f.Offset-1),
			BeforeHex:  fmt.Sprintf("%x", before),
			AfterHex:   fmt.Sprintf("%x", after),
		}
		if err := e.audit.Append(entry); err != nil {
			common.Logf("audit append failed: %v", err)
		}
	}
}

// ErrValidationFailed reports that a run was aborted by validation errors.
var ErrValidationFailed = errors.New("validation failed")
