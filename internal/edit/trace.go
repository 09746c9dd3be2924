package edit

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"example.com/segyfix/internal/common"
	"example.com/segyfix/internal/expr"
	"example.com/segyfix/internal/segy"
)

// traceEnv exposes a trace-header snapshot as the expression environment:
// every canonical field name plus trace_index. Fields decode on demand, so
// no per-trace map is built.
type traceEnv struct {
	header []byte
	index  int64
}

func (e traceEnv) Lookup(name string) (expr.Value, bool) {
	if name == "trace_index" {
		return expr.Int(e.index), true
	}
	f, ok := segy.TraceField(name)
	if !ok {
		return expr.Value{}, false
	}
	return expr.Int(f.Get(e.header)), true
}

type warnKey struct {
	op   int
	kind string
}

// TraceEditor applies the plan's trace-header operations to one trace at a
// time. CSV sources load lazily on first use and are cached for the run.
type TraceEditor struct {
	ops        []*TraceHeaderEdit
	onError    RecoveryMode
	file       string
	traceCount int64

	csv      map[string]*csvSource
	warned   map[warnKey]bool
	snapshot [segy.TraceHeaderSize]byte
	skipped  int64
}

// NewTraceEditor collects the trace-header operations of a validated plan.
func NewTraceEditor(plan *Plan, file string, traceCount int64) *TraceEditor {
	te := &TraceEditor{
		onError:    plan.OnError,
		file:       file,
		traceCount: traceCount,
		csv:        make(map[string]*csvSource),
		warned:     make(map[warnKey]bool),
	}
	for _, op := range plan.Edits {
		if t, ok := op.(*TraceHeaderEdit); ok {
			te.ops = append(te.ops, t)
		}
	}
	return te
}

// HasWork reports whether the plan contains any trace-header operations.
func (te *TraceEditor) HasWork() bool { return len(te.ops) > 0 }

// Skipped returns the number of per-trace field edits that were skipped
// under a non-abort recovery mode.
func (te *TraceEditor) Skipped() int64 { return te.skipped }

// recover decides what a per-trace error does: under RecoverAbort it is
// returned as fatal, otherwise the field edit is dropped and (outside skip
// mode) a warning is logged once per (operation, kind).
func (te *TraceEditor) recover(opIdx int, kind string, index int64, err error) error {
	if te.onError == RecoverAbort {
		return fmt.Errorf("trace %d: %w", index, err)
	}
	te.skipped++
	if te.onError == RecoverSkip {
		return nil
	}
	key := warnKey{op: opIdx, kind: kind}
	if !te.warned[key] {
		te.warned[key] = true
		common.Logf("%s: edits[%d]: %s (first at trace %d): %v", te.file, opIdx, kind, index, err)
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, segy.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, expr.ErrUnknownVariable):
		return "unknown_variable"
	case errors.Is(err, expr.ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, ErrCSVUnderflow):
		return "csv_underflow"
	case errors.Is(err, ErrCSVKeyMissing):
		return "csv_key_missing"
	case errors.Is(err, ErrCSVType):
		return "csv_type_error"
	default:
		return "edit_error"
	}
}

// EditTrace runs every trace-header operation against one header in place
// and returns a change event per field whose value actually changed.
//
// Per operation, the condition, expressions, and copies all read a snapshot
// of the header taken when the operation begins, so the field edits within
// one operation commute. Writes land on the live header; later operations
// see them.
func (te *TraceEditor) EditTrace(hdr []byte, index int64) ([]ChangeEvent, error) {
	var events []ChangeEvent
	for opIdx, op := range te.ops {
		copy(te.snapshot[:], hdr)
		env := traceEnv{header: te.snapshot[:], index: index}

		if op.condExpr != nil {
			match, err := op.condExpr.EvalBool(env)
			if err != nil {
				if rerr := te.recover(opIdx, errorKind(err), index, err); rerr != nil {
					return events, rerr
				}
				continue
			}
			if !match {
				continue
			}
		}

		for i := range op.Fields {
			fe := &op.Fields[i]
			value, err := te.fieldValue(fe, env, index)
			if err != nil {
				if rerr := te.recover(opIdx, errorKind(err), index, err); rerr != nil {
					return events, rerr
				}
				continue
			}
			old := fe.field.Get(hdr)
			if err := fe.field.Put(hdr, value); err != nil {
				if te.onError == RecoverClamp && errors.Is(err, segy.ErrOutOfRange) {
					value = clamp(value, fe.field)
					if perr := fe.field.Put(hdr, value); perr != nil {
						return events, perr
					}
					te.recoverClampWarn(opIdx, index, fe.field.Name)
				} else if rerr := te.recover(opIdx, errorKind(err), index, err); rerr != nil {
					return events, rerr
				} else {
					continue
				}
			}
			if value != old {
				events = append(events, ChangeEvent{
					File:       te.file,
					Ts:         time.Now(),
					Region:     RegionTrace,
					Field:      fe.field.Name,
					TraceIndex: index,
					Old:        strconv.FormatInt(old, 10),
					New:        strconv.FormatInt(value, 10),
				})
			}
		}
	}
	return events, nil
}

func (te *TraceEditor) recoverClampWarn(opIdx int, index int64, field string) {
	key := warnKey{op: opIdx, kind: "out_of_range"}
	if !te.warned[key] {
		te.warned[key] = true
		common.Logf("%s: edits[%d]: clamped %s to field range (first at trace %d)", te.file, opIdx, field, index)
	}
}

func clamp(v int64, f segy.Field) int64 {
	min, max := f.Range()
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// fieldValue computes the new value for one field edit against the
// operation snapshot.
func (te *TraceEditor) fieldValue(fe *TraceFieldEdit, env traceEnv, index int64) (int64, error) {
	switch fe.Mode {
	case TraceSetConstant:
		return fe.Value, nil
	case TraceExpression:
		v, err := fe.compiled.Eval(env)
		if err != nil {
			return 0, err
		}
		return v.Int64(), nil
	case TraceCopyFrom:
		return fe.source.Get(env.header), nil
	case TraceCSVColumn:
		return te.csvValue(fe, env, index)
	}
	return 0, fmt.Errorf("unknown edit mode %q", fe.Mode)
}

func (te *TraceEditor) csvValue(fe *TraceFieldEdit, env traceEnv, index int64) (int64, error) {
	src, ok := te.csv[fe.CSVFile]
	if !ok {
		loaded, err := loadCSV(fe.CSVFile)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCSVType, err)
		}
		te.csv[fe.CSVFile] = loaded
		src = loaded
		if fe.KeyColumn == "" && int64(src.Rows()) > te.traceCount && te.traceCount > 0 {
			common.Logf("%s: csv %s has %d rows for %d traces; extras ignored",
				te.file, fe.CSVFile, src.Rows(), te.traceCount)
		}
	}

	row := int(index)
	if fe.KeyColumn != "" {
		key := fe.keyField.Get(env.header)
		r, err := src.rowByKey(fe.KeyColumn, key)
		if err != nil {
			return 0, err
		}
		row = r
	}
	text, err := src.cell(row, fe.CSVColumn)
	if err != nil {
		return 0, err
	}
	return parseCSVValue(text, fe.Name)
}
