// Package edit holds the typed edit plan and the editors that apply it to
// the three SEG-Y header regions. Plans arrive from the YAML loader already
// decoded; Validate resolves every field name and compiles every expression
// before the first byte of trace data is read.
package edit

import (
	"errors"
	"fmt"
	"os"
	"time"

	"example.com/segyfix/internal/expr"
	"example.com/segyfix/internal/segy"
	"example.com/segyfix/internal/validate"
)

// OutputMode selects where edited bytes go.
type OutputMode string

const (
	OutputInPlace        OutputMode = "in_place"
	OutputSeparateFolder OutputMode = "separate_folder"
	OutputDiscard        OutputMode = "discard"
)

// RecoveryMode controls how per-trace errors are handled.
type RecoveryMode string

const (
	RecoverAbort RecoveryMode = "abort"
	RecoverSkip  RecoveryMode = "skip"
	RecoverWarn  RecoveryMode = "warn"
	// RecoverClamp pins out-of-range results to the field limits; other
	// per-trace errors behave as with RecoverWarn.
	RecoverClamp RecoveryMode = "clamp"
)

// Plan is a complete, declarative description of one edit run.
type Plan struct {
	OutputMode  OutputMode
	OutputDir   string
	DryRun      bool
	OnError     RecoveryMode
	Validations validate.Config
	Edits       []Operation
}

// Operation is one edit step; the concrete type selects the target region.
type Operation interface {
	operation()
}

// EbcdicMode selects how an EbcdicEdit rewrites the textual header.
type EbcdicMode string

const (
	EbcdicLines    EbcdicMode = "lines"
	EbcdicTemplate EbcdicMode = "template"
)

// EbcdicEdit rewrites lines of the 3200-byte textual header.
type EbcdicEdit struct {
	Mode     EbcdicMode
	Lines    map[int]string // lines mode: 0-based line index -> text
	Template []string       // template mode: exactly 40 lines
}

func (*EbcdicEdit) operation() {}

// BinaryFieldEdit sets one binary-header field to a constant. Either Name
// resolves against the field table, or Offset/Width/Signed describe a raw
// location inside the 400-byte block.
type BinaryFieldEdit struct {
	Name   string
	Offset int
	Width  int
	Signed bool
	Value  int64

	field segy.Field
}

// BinaryHeaderEdit applies constant edits to the binary file header.
type BinaryHeaderEdit struct {
	Fields []BinaryFieldEdit
}

func (*BinaryHeaderEdit) operation() {}

// TraceEditMode selects how a TraceFieldEdit computes its value.
type TraceEditMode string

const (
	TraceSetConstant TraceEditMode = "constant"
	TraceExpression  TraceEditMode = "expression"
	TraceCopyFrom    TraceEditMode = "copy_from"
	TraceCSVColumn   TraceEditMode = "csv_column"
)

// TraceFieldEdit computes a value for one trace-header field.
type TraceFieldEdit struct {
	Name string
	Mode TraceEditMode

	Value       int64  // constant
	Expression  string // expression
	SourceField string // copy_from
	CSVFile     string // csv_column
	CSVColumn   string
	KeyColumn   string // optional: bind rows by this header field instead of row index

	field    segy.Field
	source   segy.Field
	keyField segy.Field
	compiled *expr.Expr
}

// TraceHeaderEdit applies field edits to every trace whose condition holds.
type TraceHeaderEdit struct {
	Condition string
	Fields    []TraceFieldEdit

	condExpr *expr.Expr
}

func (*TraceHeaderEdit) operation() {}

// Region identifies which header region a change touched.
type Region string

const (
	RegionEbcdic Region = "ebcdic"
	RegionBinary Region = "binary"
	RegionTrace  Region = "trace"
)

// ChangeEvent records one field (or line) mutation for the changelog.
type ChangeEvent struct {
	File       string
	Ts         time.Time
	Region     Region
	Field      string
	TraceIndex int64 // -1 for file-level regions
	Old        string
	New        string
}

var errPlan = errors.New("invalid edit plan")

// Validate resolves all field references and compiles all expressions.
// It must pass before any file I/O; a failure here leaves files untouched.
func (p *Plan) Validate() error {
	switch p.OutputMode {
	case OutputInPlace, OutputDiscard:
	case OutputSeparateFolder:
		if p.OutputDir == "" {
			return fmt.Errorf("%w: output_mode separate_folder requires output_dir", errPlan)
		}
	case "":
		return fmt.Errorf("%w: output_mode is required", errPlan)
	default:
		return fmt.Errorf("%w: unknown output_mode %q", errPlan, p.OutputMode)
	}
	switch p.OnError {
	case "":
		p.OnError = RecoverAbort
	case RecoverAbort, RecoverSkip, RecoverWarn, RecoverClamp:
	default:
		return fmt.Errorf("%w: unknown on_error mode %q", errPlan, p.OnError)
	}
	if err := p.Validations.Check(); err != nil {
		return fmt.Errorf("%w: %v", errPlan, err)
	}

	for i, op := range p.Edits {
		var err error
		switch o := op.(type) {
		case *EbcdicEdit:
			err = o.validate()
		case *BinaryHeaderEdit:
			err = o.validate()
		case *TraceHeaderEdit:
			err = o.validate()
		default:
			err = fmt.Errorf("unknown operation type %T", op)
		}
		if err != nil {
			return fmt.Errorf("%w: edits[%d]: %w", errPlan, i, err)
		}
	}
	return nil
}

func (e *EbcdicEdit) validate() error {
	switch e.Mode {
	case EbcdicLines:
		if len(e.Lines) == 0 {
			return fmt.Errorf("lines mode requires at least one line")
		}
		for idx := range e.Lines {
			if idx < 0 || idx >= segy.TextLines {
				return fmt.Errorf("line index %d outside 0..%d", idx, segy.TextLines-1)
			}
		}
	case EbcdicTemplate:
		if len(e.Template) != segy.TextLines {
			return fmt.Errorf("template mode requires exactly %d lines, got %d", segy.TextLines, len(e.Template))
		}
	default:
		return fmt.Errorf("unknown ebcdic mode %q", e.Mode)
	}
	return nil
}

func (b *BinaryHeaderEdit) validate() error {
	if len(b.Fields) == 0 {
		return fmt.Errorf("binary_header edit has no fields")
	}
	for i := range b.Fields {
		fe := &b.Fields[i]
		switch {
		case fe.Name != "":
			f, ok := segy.BinaryField(fe.Name)
			if !ok {
				return fmt.Errorf("%w: binary field %q", segy.ErrUnknownField, fe.Name)
			}
			fe.field = f
		case fe.Offset > 0:
			width := fe.Width
			if width == 0 {
				width = 2
			}
			if width != 1 && width != 2 && width != 4 {
				return fmt.Errorf("custom offset width must be 1, 2 or 4, got %d", width)
			}
			if fe.Offset+width-1 > segy.BinaryHeaderSize {
				return fmt.Errorf("offset %d width %d exceeds the %d-byte binary header", fe.Offset, width, segy.BinaryHeaderSize)
			}
			name := fe.Name
			if f, ok := segy.BinaryFieldByOffset(fe.Offset); ok && f.Width == width {
				name = f.Name
			} else if name == "" {
				name = fmt.Sprintf("byte_offset_%d", fe.Offset)
			}
			fe.field = segy.Field{Name: name, Offset: fe.Offset, Width: width, Signed: fe.Signed}
		default:
			return fmt.Errorf("binary field edit needs a name or an offset")
		}
		// Constant edits are range-checked up front so a bad value fails
		// before any file is opened.
		min, max := fe.field.Range()
		if fe.Value < min || fe.Value > max {
			return fmt.Errorf("%w: %s=%d (allowed %d..%d)", segy.ErrOutOfRange, fe.field.Name, fe.Value, min, max)
		}
	}
	return nil
}

func traceVarAllowed(name string) bool {
	if name == "trace_index" {
		return true
	}
	_, ok := segy.TraceField(name)
	return ok
}

func (t *TraceHeaderEdit) validate() error {
	if len(t.Fields) == 0 {
		return fmt.Errorf("trace_header edit has no fields")
	}
	if t.Condition != "" {
		compiled, err := expr.Parse(t.Condition)
		if err != nil {
			return fmt.Errorf("condition: %w", err)
		}
		if err := compiled.CheckVars(traceVarAllowed); err != nil {
			return fmt.Errorf("condition: %w", err)
		}
		t.condExpr = compiled
	}
	for i := range t.Fields {
		fe := &t.Fields[i]
		f, ok := segy.TraceField(fe.Name)
		if !ok {
			return fmt.Errorf("%w: trace field %q", segy.ErrUnknownField, fe.Name)
		}
		fe.field = f

		switch fe.Mode {
		case TraceSetConstant:
			min, max := f.Range()
			if fe.Value < min || fe.Value > max {
				return fmt.Errorf("%w: %s=%d (allowed %d..%d)", segy.ErrOutOfRange, f.Name, fe.Value, min, max)
			}
		case TraceExpression:
			compiled, err := expr.Parse(fe.Expression)
			if err != nil {
				return fmt.Errorf("field %s: %w", fe.Name, err)
			}
			if err := compiled.CheckVars(traceVarAllowed); err != nil {
				return fmt.Errorf("field %s: %w", fe.Name, err)
			}
			fe.compiled = compiled
		case TraceCopyFrom:
			src, ok := segy.TraceField(fe.SourceField)
			if !ok {
				return fmt.Errorf("%w: copy source %q", segy.ErrUnknownField, fe.SourceField)
			}
			fe.source = src
		case TraceCSVColumn:
			if fe.CSVFile == "" {
				return fmt.Errorf("field %s: csv_file is required", fe.Name)
			}
			if _, err := os.Stat(fe.CSVFile); err != nil {
				return fmt.Errorf("field %s: csv_file: %w", fe.Name, err)
			}
			if fe.CSVColumn == "" {
				fe.CSVColumn = fe.Name
			}
			if fe.KeyColumn != "" {
				kf, ok := segy.TraceField(fe.KeyColumn)
				if !ok {
					return fmt.Errorf("%w: key column %q", segy.ErrUnknownField, fe.KeyColumn)
				}
				fe.keyField = kf
			}
		default:
			return fmt.Errorf("field %s: unknown edit mode %q", fe.Name, fe.Mode)
		}
	}
	return nil
}
