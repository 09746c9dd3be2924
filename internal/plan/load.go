// Package plan loads YAML edit plans into the typed form the engine runs.
// Decoding is strict: an unknown key anywhere in the document is a parse
// error naming the offending field.
package plan

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"example.com/segyfix/internal/edit"
	"example.com/segyfix/internal/validate"
)

// ErrParse marks malformed plan files; no file I/O has happened when it is
// returned.
var ErrParse = errors.New("plan parse error")

type planFile struct {
	OutputMode  string           `yaml:"output_mode"`
	OutputDir   string           `yaml:"output_dir"`
	DryRun      bool             `yaml:"dry_run"`
	OnError     string           `yaml:"on_error"`
	Validations *validationsFile `yaml:"validations"`
	Edits       []operationFile  `yaml:"edits"`
}

type validationsFile struct {
	CheckFileStructure      bool        `yaml:"check_file_structure"`
	CheckBinaryHeader       bool        `yaml:"check_binary_header"`
	CheckCoordinateRange    bool        `yaml:"check_coordinate_range"`
	CheckCoordinateOutliers bool        `yaml:"check_coordinate_outliers"`
	CoordinateBounds        *boundsFile `yaml:"coordinate_bounds"`
	OutlierK                float64     `yaml:"outlier_k"`
}

type boundsFile struct {
	XMin float64 `yaml:"x_min"`
	XMax float64 `yaml:"x_max"`
	YMin float64 `yaml:"y_min"`
	YMax float64 `yaml:"y_max"`
}

type operationFile struct {
	Type string `yaml:"type"`

	// type: ebcdic
	Mode     string         `yaml:"mode"`
	Lines    map[int]string `yaml:"lines"`
	Template []string       `yaml:"template"`

	// type: trace_header
	Condition string `yaml:"condition"`

	// type: binary_header | trace_header
	Fields []fieldFile `yaml:"fields"`
}

type fieldFile struct {
	Name   string `yaml:"name"`
	Offset int    `yaml:"offset"`
	Width  int    `yaml:"width"`
	Signed *bool  `yaml:"signed"`
	Value  *int64 `yaml:"value"`

	Expression string `yaml:"expression"`
	CopyFrom   string `yaml:"copy_from"`
	CSVFile    string `yaml:"csv_file"`
	CSVColumn  string `yaml:"csv_column"`
	KeyColumn  string `yaml:"key_column"`
}

// Load reads, strictly decodes, and validates the plan at path.
func Load(path string) (*edit.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var doc planFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	p, err := build(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return p, nil
}

func build(doc planFile) (*edit.Plan, error) {
	p := &edit.Plan{
		OutputMode: edit.OutputMode(doc.OutputMode),
		OutputDir:  doc.OutputDir,
		DryRun:     doc.DryRun,
		OnError:    edit.RecoveryMode(doc.OnError),
	}
	// An omitted output_mode gets the safe default of copying into
	// ./output; an explicit separate_folder still requires output_dir.
	if p.OutputMode == "" {
		p.OutputMode = edit.OutputSeparateFolder
		if p.OutputDir == "" {
			p.OutputDir = "./output"
		}
	}
	if p.DryRun {
		p.OutputMode = edit.OutputDiscard
	}

	if v := doc.Validations; v != nil {
		p.Validations = validate.Config{
			CheckFileStructure:      v.CheckFileStructure,
			CheckBinaryHeader:       v.CheckBinaryHeader,
			CheckCoordinateRange:    v.CheckCoordinateRange,
			CheckCoordinateOutliers: v.CheckCoordinateOutliers,
			OutlierK:                v.OutlierK,
		}
		if b := v.CoordinateBounds; b != nil {
			p.Validations.Bounds = &validate.Bounds{XMin: b.XMin, XMax: b.XMax, YMin: b.YMin, YMax: b.YMax}
		}
	}

	for i, op := range doc.Edits {
		built, err := buildOperation(op)
		if err != nil {
			return nil, fmt.Errorf("edits[%d]: %v", i, err)
		}
		p.Edits = append(p.Edits, built)
	}
	return p, nil
}

func buildOperation(op operationFile) (edit.Operation, error) {
	switch op.Type {
	case "ebcdic":
		mode := edit.EbcdicMode(op.Mode)
		if mode == "" {
			mode = edit.EbcdicLines
		}
		return &edit.EbcdicEdit{Mode: mode, Lines: op.Lines, Template: op.Template}, nil

	case "binary_header":
		out := &edit.BinaryHeaderEdit{}
		for i, ff := range op.Fields {
			if ff.Value == nil {
				return nil, fmt.Errorf("fields[%d]: binary_header fields require value", i)
			}
			signed := true
			if ff.Signed != nil {
				signed = *ff.Signed
			}
			out.Fields = append(out.Fields, edit.BinaryFieldEdit{
				Name:   ff.Name,
				Offset: ff.Offset,
				Width:  ff.Width,
				Signed: signed,
				Value:  *ff.Value,
			})
		}
		return out, nil

	case "trace_header":
		out := &edit.TraceHeaderEdit{Condition: op.Condition}
		for i, ff := range op.Fields {
			fe, err := buildTraceField(ff)
			if err != nil {
				return nil, fmt.Errorf("fields[%d]: %v", i, err)
			}
			out.Fields = append(out.Fields, fe)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown edit type %q", op.Type)
}

func buildTraceField(ff fieldFile) (edit.TraceFieldEdit, error) {
	fe := edit.TraceFieldEdit{
		Name:        ff.Name,
		Expression:  ff.Expression,
		SourceField: ff.CopyFrom,
		CSVFile:     ff.CSVFile,
		CSVColumn:   ff.CSVColumn,
		KeyColumn:   ff.KeyColumn,
	}
	modes := 0
	if ff.Expression != "" {
		fe.Mode = edit.TraceExpression
		modes++
	}
	if ff.CopyFrom != "" {
		fe.Mode = edit.TraceCopyFrom
		modes++
	}
	if ff.CSVFile != "" {
		fe.Mode = edit.TraceCSVColumn
		modes++
	}
	if ff.Value != nil {
		fe.Mode = edit.TraceSetConstant
		fe.Value = *ff.Value
		modes++
	}
	if modes == 0 {
		return fe, fmt.Errorf("field %q needs one of value, expression, copy_from, csv_file", ff.Name)
	}
	if modes > 1 {
		return fe, fmt.Errorf("field %q sets more than one of value, expression, copy_from, csv_file", ff.Name)
	}
	return fe, nil
}
