// Package validate runs the opt-in integrity checks over a SEG-Y file and
// reports findings. Structural checks come from header metadata only;
// coordinate checks stream every trace once.
package validate

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"example.com/segyfix/internal/segy"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one validation result. TraceIndex is -1 for file-scope
// findings.
type Finding struct {
	File       string
	TraceIndex int64
	Severity   Severity
	Kind       string
	Message    string
	Context    string
}

// Scope renders the trace index column for reports.
func (f Finding) Scope() string {
	if f.TraceIndex < 0 {
		return "file"
	}
	return fmt.Sprintf("%d", f.TraceIndex)
}

// Bounds is the acceptable coordinate window for check_coordinate_range.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Config selects which checks run.
type Config struct {
	CheckFileStructure      bool
	CheckBinaryHeader       bool
	CheckCoordinateRange    bool
	CheckCoordinateOutliers bool
	Bounds                  *Bounds
	OutlierK                float64
}

// DefaultOutlierK is the MAD multiplier used when the plan does not set one.
const DefaultOutlierK = 10

// Check verifies the configuration is self-consistent and fills defaults.
func (c *Config) Check() error {
	if c.CheckCoordinateRange && c.Bounds == nil {
		return errors.New("check_coordinate_range requires coordinate_bounds")
	}
	if c.Bounds != nil {
		if c.Bounds.XMin > c.Bounds.XMax || c.Bounds.YMin > c.Bounds.YMax {
			return errors.New("coordinate_bounds min exceeds max")
		}
	}
	if c.OutlierK <= 0 {
		c.OutlierK = DefaultOutlierK
	}
	return nil
}

// Any reports whether at least one check is enabled.
func (c Config) Any() bool {
	return c.CheckFileStructure || c.CheckBinaryHeader || c.CheckCoordinateRange || c.CheckCoordinateOutliers
}

// HasErrors reports whether any finding carries error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// coordinateFields are the six trace-header coordinates subject to range
// and outlier checks, paired with the bounds axis they fall on.
var coordinateFields = []struct {
	name  string
	axisX bool
}{
	{"source_x", true},
	{"source_y", false},
	{"group_x", true},
	{"group_y", false},
	{"cdp_x", true},
	{"cdp_y", false},
}

// Run executes the configured checks against the file at path.
func Run(path string, cfg Config) ([]Finding, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	r, err := segy.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return RunReader(r, cfg)
}

// RunReader executes the configured checks using an already-open reader.
// The reader's trace iterator is consumed when coordinate checks run.
func RunReader(r *segy.Reader, cfg Config) ([]Finding, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	info := r.Info()
	var findings []Finding

	if cfg.CheckFileStructure {
		findings = append(findings, structureFindings(info)...)
	}
	if cfg.CheckBinaryHeader {
		findings = append(findings, binaryHeaderFindings(info)...)
	}
	if cfg.CheckCoordinateRange || cfg.CheckCoordinateOutliers {
		coordFindings, err := coordinateFindings(r, cfg)
		if err != nil {
			return findings, err
		}
		findings = append(findings, coordFindings...)
	}
	return findings, nil
}

func structureFindings(info segy.FileInfo) []Finding {
	var out []Finding
	file := info.Filename

	if info.SamplesPerTrace <= 0 {
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityError, Kind: "file_structure",
			Message: fmt.Sprintf("invalid samples per trace: %d", info.SamplesPerTrace),
		})
	}
	if _, ok := segy.BytesPerSample(info.FormatCode); !ok {
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityError, Kind: "file_structure",
			Message: fmt.Sprintf("unknown format code: %d", info.FormatCode),
			Context: "recognized codes: 1, 2, 3, 4, 5, 6, 8",
		})
	}
	if info.LeftoverBytes != 0 {
		traceBytes := segy.TraceHeaderSize + info.SamplesPerTrace*info.BytesPerSample
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityError, Kind: "file_structure",
			Message: "file size inconsistent with trace layout",
			Context: fmt.Sprintf("%d bytes remain after %d records of %d bytes", info.LeftoverBytes, info.TraceCount, traceBytes),
		})
	}
	if len(out) == 0 {
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityInfo, Kind: "file_structure",
			Message: fmt.Sprintf("structure consistent: %d traces of %d samples", info.TraceCount, info.SamplesPerTrace),
		})
	}
	return out
}

func binaryHeaderFindings(info segy.FileInfo) []Finding {
	var out []Finding
	file := info.Filename

	if info.SampleInterval <= 0 {
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityError, Kind: "binary_header",
			Message: fmt.Sprintf("invalid sample interval: %d us", info.SampleInterval),
		})
	}
	if info.SamplesPerTrace > 100000 {
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityWarning, Kind: "binary_header",
			Message: fmt.Sprintf("unusually high samples per trace: %d", info.SamplesPerTrace),
		})
	}
	if _, ok := segy.BytesPerSample(info.FormatCode); ok {
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityInfo, Kind: "binary_header",
			Message: fmt.Sprintf("format code %d (%s)", info.FormatCode, segy.FormatName(info.FormatCode)),
		})
	}
	return out
}

// applyScalar applies SEG-Y coordinate-scalar semantics: positive values
// multiply, negative values divide, zero acts as one.
func applyScalar(raw int64, scalar int64) float64 {
	switch {
	case scalar > 0:
		return float64(raw) * float64(scalar)
	case scalar < 0:
		return float64(raw) / float64(-scalar)
	default:
		return float64(raw)
	}
}

func coordinateFindings(r *segy.Reader, cfg Config) ([]Finding, error) {
	info := r.Info()
	file := info.Filename
	var out []Finding

	scalarField, _ := segy.TraceField("coordinate_scalar")
	fields := make([]segy.Field, len(coordinateFields))
	for i, cf := range coordinateFields {
		f, _ := segy.TraceField(cf.name)
		fields[i] = f
	}

	// Scaled values per coordinate field, kept for the outlier pass.
	var values [][]float64
	if cfg.CheckCoordinateOutliers {
		values = make([][]float64, len(coordinateFields))
	}

	zeroScalarWarned := false
	firstScalar := int64(0)
	scalarVaries := false
	traceCount := int64(0)

	for {
		trace, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		scalar := scalarField.Get(trace.Header)
		if scalar == 0 && !zeroScalarWarned {
			zeroScalarWarned = true
			out = append(out, Finding{
				File: file, TraceIndex: trace.Index, Severity: SeverityWarning, Kind: "coordinate_scalar",
				Message: "coordinate scalar is 0; treated as 1",
			})
		}
		if traceCount == 0 {
			firstScalar = scalar
		} else if scalar != firstScalar {
			scalarVaries = true
		}
		traceCount++

		for i, cf := range coordinateFields {
			raw := fields[i].Get(trace.Header)
			scaled := applyScalar(raw, scalar)
			if values != nil {
				values[i] = append(values[i], scaled)
			}
			if cfg.CheckCoordinateRange {
				var lo, hi float64
				if cf.axisX {
					lo, hi = cfg.Bounds.XMin, cfg.Bounds.XMax
				} else {
					lo, hi = cfg.Bounds.YMin, cfg.Bounds.YMax
				}
				if scaled < lo || scaled > hi {
					out = append(out, Finding{
						File: file, TraceIndex: trace.Index, Severity: SeverityWarning, Kind: "coordinate_range",
						Message: fmt.Sprintf("%s = %.0f outside [%.0f, %.0f]", cf.name, scaled, lo, hi),
						Context: fmt.Sprintf("raw %d, scalar %d", raw, scalar),
					})
				}
			}
		}
	}

	if scalarVaries {
		out = append(out, Finding{
			File: file, TraceIndex: -1, Severity: SeverityWarning, Kind: "coordinate_scalar",
			Message: "coordinate scalar varies across traces",
		})
	}

	if cfg.CheckCoordinateOutliers && traceCount > 0 {
		for i, cf := range coordinateFields {
			out = append(out, outlierFindings(file, cf.name, values[i], cfg.OutlierK)...)
		}
	}
	return out, nil
}

// outlierFindings flags traces whose value lies farther than k median
// absolute deviations from the median. With a zero MAD any deviation from
// the median is flagged, which keeps a single outlier among constant values
// detectable.
func outlierFindings(file, field string, vals []float64, k float64) []Finding {
	med := median(vals)
	devs := make([]float64, len(vals))
	for i, v := range vals {
		devs[i] = math.Abs(v - med)
	}
	mad := median(devs)

	var out []Finding
	for i, v := range vals {
		dev := math.Abs(v - med)
		outlier := dev > k*mad
		if mad == 0 {
			outlier = dev > 0
		}
		if outlier {
			out = append(out, Finding{
				File: file, TraceIndex: int64(i), Severity: SeverityWarning, Kind: "coordinate_outlier",
				Message: fmt.Sprintf("%s = %.0f deviates %.0f from median %.0f", field, v, dev, med),
				Context: fmt.Sprintf("MAD %.0f, threshold %.0f", mad, k*mad),
			})
		}
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
