package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/segyfix/internal/common"
	"example.com/segyfix/internal/edit"
	"example.com/segyfix/internal/report"
	"example.com/segyfix/internal/segy"
	"example.com/segyfix/internal/validate"
)

func buildFile(t *testing.T, dir string, formatCode int16, samples, traces int, setup func(i int, hdr []byte)) string {
	t.Helper()

	textual, _ := segy.EncodeTextualHeader([]string{"C01 ENGINE FIXTURE", "C02 SECOND LINE"}, segy.EncodingEBCDIC)
	binaryHdr := make([]byte, segy.BinaryHeaderSize)
	put := func(name string, v int64) {
		f, ok := segy.BinaryField(name)
		require.True(t, ok, name)
		require.NoError(t, f.Put(binaryHdr, v))
	}
	put("sample_interval", 4000)
	put("samples_per_trace", int64(samples))
	put("format_code", int64(formatCode))

	bps, ok := segy.BytesPerSample(formatCode)
	require.True(t, ok)

	var buf bytes.Buffer
	buf.Write(textual)
	buf.Write(binaryHdr)
	for i := 0; i < traces; i++ {
		hdr := make([]byte, segy.TraceHeaderSize)
		seq, _ := segy.TraceField("trace_sequence_line")
		require.NoError(t, seq.Put(hdr, int64(i+1)))
		if setup != nil {
			setup(i, hdr)
		}
		buf.Write(hdr)
		payload := make([]byte, samples*bps)
		for j := range payload {
			payload[j] = byte(37*i + j)
		}
		buf.Write(payload)
	}

	path := filepath.Join(dir, "fixture.sgy")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func runPlan(t *testing.T, p *edit.Plan, path string, opts ...Option) Result {
	t.Helper()
	require.NoError(t, p.Validate())
	results := New(p, opts...).Run(context.Background(), []string{path})
	require.Len(t, results, 1)
	return results[0]
}

func readTraceField(t *testing.T, data []byte, payload int, traceIdx int, field string) int64 {
	t.Helper()
	f, ok := segy.TraceField(field)
	require.True(t, ok, field)
	start := 3600 + traceIdx*(segy.TraceHeaderSize+payload)
	return f.Get(data[start : start+segy.TraceHeaderSize])
}

func TestBinaryConstantEdit(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 10, 2, nil)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.BinaryHeaderEdit{Fields: []edit.BinaryFieldEdit{
				{Name: "sample_interval", Value: 2000},
			}},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.Equal(t, int64(1), res.Changes)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, after, len(before))

	// Bytes 17..18 of the binary header (1-based) are big-endian 2000; all
	// other bytes are untouched.
	assert.Equal(t, byte(0x07), after[3200+16])
	assert.Equal(t, byte(0xD0), after[3200+17])
	for i := range after {
		if i == 3200+16 || i == 3200+17 {
			continue
		}
		require.Equal(t, before[i], after[i], "byte %d", i)
	}
}

func TestTraceExpressionEdit(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 8, 10, func(i int, hdr []byte) {
		f, _ := segy.TraceField("source_x")
		_ = f.Put(hdr, int64(100*(i+1)))
	})

	changelogPath := filepath.Join(dir, "changelog.csv")
	changelog, err := report.NewChangelog(changelogPath)
	require.NoError(t, err)

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.TraceHeaderEdit{Fields: []edit.TraceFieldEdit{
				{Name: "source_x", Mode: edit.TraceExpression, Expression: "source_x * 10"},
			}},
		},
	}
	res := runPlan(t, p, path, WithChangelog(changelog))
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	require.NoError(t, changelog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.Equal(t, int64(1000*(i+1)), readTraceField(t, data, 8*4, i, "source_x"))
	}

	f, err := os.Open(changelogPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 11, "header plus ten change rows")
	assert.Equal(t, []string{"file", "timestamp", "trace_index_or_blank", "region", "field", "old_value", "new_value"}, rows[0])
	assert.Equal(t, "trace", rows[1][3])
	assert.Equal(t, "source_x", rows[1][4])
}

func TestConditionalCopy(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 200, func(i int, hdr []byte) {
		sx, _ := segy.TraceField("source_x")
		_ = sx.Put(hdr, int64(7000+i))
	})

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.TraceHeaderEdit{
				Condition: "trace_sequence_line > 100",
				Fields: []edit.TraceFieldEdit{
					{Name: "cdp_x", Mode: edit.TraceCopyFrom, SourceField: "source_x"},
				},
			},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.Equal(t, int64(100), res.Changes)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	payload := 4 * 4
	for i := 0; i < 200; i++ {
		cdpx := readTraceField(t, data, payload, i, "cdp_x")
		if i < 100 {
			assert.Equal(t, int64(0), cdpx, "trace %d unchanged", i)
		} else {
			assert.Equal(t, int64(7000+i), cdpx, "trace %d copied", i)
		}
	}
}

func TestEbcdicLinesModePreservesOtherLines(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 1, nil)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.EbcdicEdit{Mode: edit.EbcdicLines, Lines: map[int]string{
				0: "C01 REWRITTEN",
				1: "C02 ALSO REWRITTEN",
			}},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.Equal(t, int64(2), res.Changes)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	// Lines 2..39 are byte-identical; lines 0..1 changed.
	assert.NotEqual(t, before[:160], after[:160])
	assert.Equal(t, before[160:3200], after[160:3200])
	assert.Equal(t, before[3200:], after[3200:])
}

func TestEmptyPlanIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 1, 12, 5, nil)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{OutputMode: edit.OutputInPlace}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.Equal(t, int64(0), res.Changes)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
}

func TestSeparateFolderOutput(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 3, nil)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	p := &edit.Plan{
		OutputMode: edit.OutputSeparateFolder,
		OutputDir:  outDir,
		Edits: []edit.Operation{
			&edit.BinaryHeaderEdit{Fields: []edit.BinaryFieldEdit{
				{Name: "reel_number", Value: 77},
			}},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)

	// Source untouched, output present with same size.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))

	out, err := os.ReadFile(filepath.Join(outDir, filepath.Base(path)))
	require.NoError(t, err)
	assert.Len(t, out, len(before))
	reel, _ := segy.BinaryField("reel_number")
	assert.Equal(t, int64(77), reel.Get(out[3200:3600]))
}

func TestDryRunLeavesInputUntouched(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 6, func(i int, hdr []byte) {
		sx, _ := segy.TraceField("source_x")
		_ = sx.Put(hdr, int64(i))
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	collect := func() []edit.ChangeEvent {
		changelogPath := filepath.Join(t.TempDir(), "cl.csv")
		changelog, err := report.NewChangelog(changelogPath)
		require.NoError(t, err)
		p := &edit.Plan{
			OutputMode: edit.OutputDiscard,
			DryRun:     true,
			Edits: []edit.Operation{
				&edit.TraceHeaderEdit{Fields: []edit.TraceFieldEdit{
					{Name: "source_x", Mode: edit.TraceExpression, Expression: "source_x + 5"},
				}},
			},
		}
		res := runPlan(t, p, path, WithChangelog(changelog))
		require.Equal(t, StatusSuccess, res.Status, res.Message)
		require.NoError(t, changelog.Close())
		assert.Equal(t, int64(6), res.Changes)
		return nil
	}
	collect()
	collect()

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after), "dry run must not modify the input")
}

func TestSamplePayloadsNeverModified(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 1, 20, 9, func(i int, hdr []byte) {
		sx, _ := segy.TraceField("source_x")
		_ = sx.Put(hdr, int64(i*100))
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.TraceHeaderEdit{Fields: []edit.TraceFieldEdit{
				{Name: "source_x", Mode: edit.TraceExpression, Expression: "source_x * 2 + trace_index"},
			}},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, after, len(before))

	payload := 20 * 4
	record := segy.TraceHeaderSize + payload
	for i := 0; i < 9; i++ {
		start := 3600 + i*record + segy.TraceHeaderSize
		assert.True(t, bytes.Equal(before[start:start+payload], after[start:start+payload]), "trace %d samples", i)
	}
}

func TestRollbackOnMidStreamFailure(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 10, func(i int, hdr []byte) {
		sy, _ := segy.TraceField("source_y")
		// Trace 7 divides by zero.
		if i != 7 {
			_ = sy.Put(hdr, 1)
		}
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.EbcdicEdit{Mode: edit.EbcdicLines, Lines: map[int]string{0: "C01 CHANGED"}},
			&edit.TraceHeaderEdit{Fields: []edit.TraceFieldEdit{
				{Name: "source_x", Mode: edit.TraceExpression, Expression: "100 / source_y"},
			}},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusFailure, res.Status)

	// The original file is byte-identical and no temp files remain.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestValidationErrorsAbortBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 3, nil)
	// Append stray bytes so the structure check fails.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, 0x00), 0o644))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{
		OutputMode:  edit.OutputInPlace,
		Validations: validate.Config{CheckFileStructure: true},
		Edits: []edit.Operation{
			&edit.BinaryHeaderEdit{Fields: []edit.BinaryFieldEdit{
				{Name: "reel_number", Value: 1},
			}},
		},
	}
	res := runPlan(t, p, path)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.True(t, validate.HasErrors(res.Findings))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
}

func TestCancelledContextRollsBack(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 50, nil)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{OutputMode: edit.OutputInPlace}
	require.NoError(t, p.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := New(p).Run(ctx, []string{path})
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailure, results[0].Status)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
}

func TestIBMFloatPayloadCopiedVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 1, 16, 4, nil)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	p := &edit.Plan{OutputMode: edit.OutputInPlace}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
}

func TestAuditLogAndUndoBytes(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 3, func(i int, hdr []byte) {
		sx, _ := segy.TraceField("source_x")
		_ = sx.Put(hdr, int64(10+i))
	})
	auditPath := filepath.Join(dir, "audit.jsonl")

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.TraceHeaderEdit{Fields: []edit.TraceFieldEdit{
				{Name: "source_x", Mode: edit.TraceSetConstant, Value: 999},
			}},
		},
	}
	audit, err := common.CreateAuditLog(auditPath)
	require.NoError(t, err)
	res := runPlan(t, p, path, WithAuditLog(audit))
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	require.NoError(t, audit.Close())

	entries, err := common.ReadAuditLog(auditPath)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, entry := range entries {
		after, err := entry.AfterBytes()
		require.NoError(t, err)
		assert.True(t, bytes.Equal(after, data[entry.Offset:entry.Offset+int64(len(after))]),
			"audit afterHex matches the edited file at offset %d", entry.Offset)
	}
}

func TestWorkerPoolProcessesMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 3; i++ {
		sub := filepath.Join(dir, string(rune('a'+i)))
		require.NoError(t, os.MkdirAll(sub, 0o755))
		paths = append(paths, buildFile(t, sub, 5, 4, 2, nil))
	}

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.BinaryHeaderEdit{Fields: []edit.BinaryFieldEdit{
				{Name: "job_id", Value: 123},
			}},
		},
	}
	require.NoError(t, p.Validate())
	results := New(p, WithWorkers(3)).Run(context.Background(), paths)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, StatusSuccess, r.Status, "file %d: %s", i, r.Message)
		assert.Equal(t, int64(1), r.Changes)
	}
}

func TestExtendedHeadersPassThrough(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 5, 4, 2, nil)

	// Splice one extended textual header in after the binary header.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	ext, _ := segy.BinaryField("extended_textual_headers")
	require.NoError(t, ext.Put(data[3200:3600], 1))
	extended := bytes.Repeat([]byte{0x40}, segy.TextualHeaderSize)
	spliced := append(append(append([]byte{}, data[:3600]...), extended...), data[3600:]...)
	require.NoError(t, os.WriteFile(path, spliced, 0o644))

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.BinaryHeaderEdit{Fields: []edit.BinaryFieldEdit{
				{Name: "line_number", Value: 5},
			}},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.Equal(t, int64(2), res.Traces)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, after, len(spliced))
	assert.True(t, bytes.Equal(extended, after[3600:6800]), "extended header passes through unchanged")
}

func TestOutputSizeAlwaysEqualsInputSize(t *testing.T) {
	dir := t.TempDir()
	path := buildFile(t, dir, 3, 11, 7, func(i int, hdr []byte) {
		sx, _ := segy.TraceField("source_x")
		_ = sx.Put(hdr, int64(i))
	})
	st, err := os.Stat(path)
	require.NoError(t, err)
	inputSize := st.Size()

	p := &edit.Plan{
		OutputMode: edit.OutputInPlace,
		Edits: []edit.Operation{
			&edit.EbcdicEdit{Mode: edit.EbcdicLines, Lines: map[int]string{10: "C11 NOTE"}},
			&edit.BinaryHeaderEdit{Fields: []edit.BinaryFieldEdit{{Name: "job_id", Value: 9}}},
			&edit.TraceHeaderEdit{Fields: []edit.TraceFieldEdit{
				{Name: "source_x", Mode: edit.TraceExpression, Expression: "source_x * 3 + 1"},
			}},
		},
	}
	res := runPlan(t, p, path)
	require.Equal(t, StatusSuccess, res.Status, res.Message)

	st, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, inputSize, st.Size())
}
