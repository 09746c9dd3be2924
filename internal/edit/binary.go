package edit

import (
	"fmt"
	"strconv"
	"time"

	"example.com/segyfix/internal/segy"
)

// BinaryHeaderView is a typed view over a copy of the 400-byte binary file
// header. Mutations stay in the view until the engine writes it out.
type BinaryHeaderView struct {
	buf  []byte
	file string
}

// NewBinaryHeaderView copies raw so the caller's buffer stays pristine.
func NewBinaryHeaderView(raw []byte, file string) (*BinaryHeaderView, error) {
	if len(raw) != segy.BinaryHeaderSize {
		return nil, fmt.Errorf("binary header must be %d bytes, got %d", segy.BinaryHeaderSize, len(raw))
	}
	buf := make([]byte, segy.BinaryHeaderSize)
	copy(buf, raw)
	return &BinaryHeaderView{buf: buf, file: file}, nil
}

// Bytes returns the backing 400-byte block.
func (v *BinaryHeaderView) Bytes() []byte { return v.buf }

// Get reads a named field.
func (v *BinaryHeaderView) Get(name string) (int64, error) {
	f, ok := segy.BinaryField(name)
	if !ok {
		return 0, fmt.Errorf("%w: binary field %q", segy.ErrUnknownField, name)
	}
	return f.Get(v.buf), nil
}

// Set writes a named field, range-checked against the field width.
func (v *BinaryHeaderView) Set(name string, value int64) error {
	f, ok := segy.BinaryField(name)
	if !ok {
		return fmt.Errorf("%w: binary field %q", segy.ErrUnknownField, name)
	}
	return f.Put(v.buf, value)
}

// Apply runs a validated BinaryHeaderEdit and returns one change event per
// field whose stored value actually changed.
func (v *BinaryHeaderView) Apply(op *BinaryHeaderEdit) ([]ChangeEvent, error) {
	var events []ChangeEvent
	for i := range op.Fields {
		fe := &op.Fields[i]
		old := fe.field.Get(v.buf)
		if err := fe.field.Put(v.buf, fe.Value); err != nil {
			return events, err
		}
		if old != fe.Value {
			events = append(events, ChangeEvent{
				File:       v.file,
				Ts:         time.Now(),
				Region:     RegionBinary,
				Field:      fe.field.Name,
				TraceIndex: -1,
				Old:        strconv.FormatInt(old, 10),
				New:        strconv.FormatInt(fe.Value, 10),
			})
		}
	}
	return events, nil
}
