package segy

import (
	"encoding/binary"
	"fmt"
)

// Field describes one integer field inside the binary file header or a trace
// header. Offset is 1-based per SEG-Y convention; Width is 1, 2 or 4 bytes
// (the standard tables use 2 and 4). All
// standard rev-1 fields are two's-complement signed big-endian.
type Field struct {
	Name   string
	Offset int
	Width  int
	Signed bool
}

// Range returns the inclusive value range the field can store.
func (f Field) Range() (int64, int64) {
	bits := uint(f.Width * 8)
	if f.Signed {
		max := int64(1)<<(bits-1) - 1
		return -max - 1, max
	}
	return 0, int64(1)<<bits - 1
}

// Get decodes the field from a header block.
func (f Field) Get(buf []byte) int64 {
	off := f.Offset - 1
	switch f.Width {
	case 1:
		if f.Signed {
			return int64(int8(buf[off]))
		}
		return int64(buf[off])
	case 2:
		v := binary.BigEndian.Uint16(buf[off : off+2])
		if f.Signed {
			return int64(int16(v))
		}
		return int64(v)
	case 4:
		v := binary.BigEndian.Uint32(buf[off : off+4])
		if f.Signed {
			return int64(int32(v))
		}
		return int64(v)
	default:
		panic(fmt.Sprintf("segy: field %s has unsupported width %d", f.Name, f.Width))
	}
}

// Put encodes v into the header block, range-checking against the field width.
func (f Field) Put(buf []byte, v int64) error {
	min, max := f.Range()
	if v < min || v > max {
		return fmt.Errorf("%w: %s=%d (allowed %d..%d)", ErrOutOfRange, f.Name, v, min, max)
	}
	off := f.Offset - 1
	switch f.Width {
	case 1:
		buf[off] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(v))
	case 4:
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(v))
	default:
		return fmt.Errorf("segy: field %s has unsupported width %d", f.Name, f.Width)
	}
	return nil
}

// binaryFields lists every assigned rev-1 binary file header field, in byte
// order. Offsets are within the 400-byte block.
var binaryFields = []Field{
	{"job_id", 1, 4, true},
	{"line_number", 5, 4, true},
	{"reel_number", 9, 4, true},
	{"traces_per_ensemble", 13, 2, true},
	{"aux_traces_per_ensemble", 15, 2, true},
	{"sample_interval", 17, 2, true},
	{"sample_interval_original", 19, 2, true},
	{"samples_per_trace", 21, 2, true},
	{"samples_per_trace_original", 23, 2, true},
	{"format_code", 25, 2, true},
	{"ensemble_fold", 27, 2, true},
	{"trace_sorting_code", 29, 2, true},
	{"vertical_sum_code", 31, 2, true},
	{"sweep_frequency_start", 33, 2, true},
	{"sweep_frequency_end", 35, 2, true},
	{"sweep_length", 37, 2, true},
	{"sweep_type_code", 39, 2, true},
	{"sweep_trace_number", 41, 2, true},
	{"sweep_taper_start", 43, 2, true},
	{"sweep_taper_end", 45, 2, true},
	{"taper_type", 47, 2, true},
	{"correlated_traces", 49, 2, true},
	{"binary_gain_recovered", 51, 2, true},
	{"amplitude_recovery_method", 53, 2, true},
	{"measurement_system", 55, 2, true},
	{"impulse_signal_polarity", 57, 2, true},
	{"vibratory_polarity_code", 59, 2, true},
	{"segy_revision", 301, 2, true},
	{"fixed_length_trace_flag", 303, 2, true},
	{"extended_textual_headers", 305, 2, true},
}

// traceFields lists every assigned rev-1 trace header field, in byte order.
// Offsets are within the 240-byte header.
var traceFields = []Field{
	{"trace_sequence_line", 1, 4, true},
	{"trace_sequence_file", 5, 4, true},
	{"field_record", 9, 4, true},
	{"trace_number_field", 13, 4, true},
	{"energy_source_point", 17, 4, true},
	{"ensemble_number", 21, 4, true},
	{"trace_in_ensemble", 25, 4, true},
	{"trace_id_code", 29, 2, true},
	{"vertically_summed_traces", 31, 2, true},
	{"horizontally_stacked_traces", 33, 2, true},
	{"data_use", 35, 2, true},
	{"source_receiver_offset", 37, 4, true},
	{"receiver_elevation", 41, 4, true},
	{"source_surface_elevation", 45, 4, true},
	{"source_depth", 49, 4, true},
	{"receiver_datum_elevation", 53, 4, true},
	{"source_datum_elevation", 57, 4, true},
	{"source_water_depth", 61, 4, true},
	{"receiver_water_depth", 65, 4, true},
	{"elevation_scalar", 69, 2, true},
	{"coordinate_scalar", 71, 2, true},
	{"source_x", 73, 4, true},
	{"source_y", 77, 4, true},
	{"group_x", 81, 4, true},
	{"group_y", 85, 4, true},
	{"coordinate_units", 89, 2, true},
	{"weathering_velocity", 91, 2, true},
	{"subweathering_velocity", 93, 2, true},
	{"source_uphole_time", 95, 2, true},
	{"receiver_uphole_time", 97, 2, true},
	{"source_static", 99, 2, true},
	{"receiver_static", 101, 2, true},
	{"total_static", 103, 2, true},
	{"lag_time_a", 105, 2, true},
	{"lag_time_b", 107, 2, true},
	{"delay_recording_time", 109, 2, true},
	{"mute_time_start", 111, 2, true},
	{"mute_time_end", 113, 2, true},
	{"trace_samples", 115, 2, true},
	{"trace_sample_interval", 117, 2, true},
	{"gain_type", 119, 2, true},
	{"instrument_gain", 121, 2, true},
	{"instrument_early_gain", 123, 2, true},
	{"correlated", 125, 2, true},
	{"sweep_frequency_start", 127, 2, true},
	{"sweep_frequency_end", 129, 2, true},
	{"sweep_length", 131, 2, true},
	{"sweep_type", 133, 2, true},
	{"sweep_taper_start", 135, 2, true},
	{"sweep_taper_end", 137, 2, true},
	{"taper_type", 139, 2, true},
	{"alias_filter_frequency", 141, 2, true},
	{"alias_filter_slope", 143, 2, true},
	{"notch_filter_frequency", 145, 2, true},
	{"notch_filter_slope", 147, 2, true},
	{"low_cut_frequency", 149, 2, true},
	{"high_cut_frequency", 151, 2, true},
	{"low_cut_slope", 153, 2, true},
	{"high_cut_slope", 155, 2, true},
	{"year", 157, 2, true},
	{"day_of_year", 159, 2, true},
	{"hour", 161, 2, true},
	{"minute", 163, 2, true},
	{"second", 165, 2, true},
	{"time_basis_code", 167, 2, true},
	{"trace_weighting_factor", 169, 2, true},
	{"group_number_roll", 171, 2, true},
	{"group_number_first_trace", 173, 2, true},
	{"group_number_last_trace", 175, 2, true},
	{"gap_size", 177, 2, true},
	{"over_travel", 179, 2, true},
	{"cdp_x", 181, 4, true},
	{"cdp_y", 185, 4, true},
	{"inline", 189, 4, true},
	{"crossline", 193, 4, true},
	{"shotpoint", 197, 4, true},
	{"shotpoint_scalar", 201, 2, true},
	{"trace_value_unit", 203, 2, true},
	{"transduction_constant_mantissa", 205, 4, true},
	{"transduction_constant_exponent", 209, 2, true},
	{"transduction_unit", 211, 2, true},
	{"device_trace_id", 213, 2, true},
	{"time_scalar", 215, 2, true},
	{"source_type_orientation", 217, 2, true},
	{"source_energy_direction_mantissa", 219, 4, true},
	{"source_energy_direction_exponent", 223, 2, true},
	{"source_measurement_mantissa", 225, 4, true},
	{"source_measurement_exponent", 229, 2, true},
	{"source_measurement_unit", 231, 2, true},
}

var (
	binaryByName = indexByName(binaryFields)
	traceByName  = indexByName(traceFields)
)

func indexByName(fields []Field) map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}

// BinaryField looks up a binary-header field by canonical name.
func BinaryField(name string) (Field, bool) {
	f, ok := binaryByName[name]
	return f, ok
}

// TraceField looks up a trace-header field by canonical name.
func TraceField(name string) (Field, bool) {
	f, ok := traceByName[name]
	return f, ok
}

// BinaryFieldByOffset resolves a 1-based byte offset to a named field.
func BinaryFieldByOffset(offset int) (Field, bool) {
	return fieldByOffset(binaryFields, offset)
}

// TraceFieldByOffset resolves a 1-based byte offset to a named field.
func TraceFieldByOffset(offset int) (Field, bool) {
	return fieldByOffset(traceFields, offset)
}

func fieldByOffset(fields []Field, offset int) (Field, bool) {
	for _, f := range fields {
		if f.Offset == offset {
			return f, true
		}
	}
	return Field{}, false
}

// BinaryFields returns the binary-header field table in byte order.
func BinaryFields() []Field {
	out := make([]Field, len(binaryFields))
	copy(out, binaryFields)
	return out
}

// TraceFields returns the trace-header field table in byte order.
func TraceFields() []Field {
	out := make([]Field, len(traceFields))
	copy(out, traceFields)
	return out
}

// TraceFieldNames returns all canonical trace-header field names in byte
// order. The expression evaluator uses this set as its variable environment.
func TraceFieldNames() []string {
	names := make([]string, len(traceFields))
	for i, f := range traceFields {
		names[i] = f.Name
	}
	return names
}
