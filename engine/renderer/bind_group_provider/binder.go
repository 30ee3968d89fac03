package bind_group_provider

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/loader"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/pkg/errors"
)

// binder holds the state of one Bind call.
type binder struct {
	label         string
	ignoreUnknown bool

	target   Target
	declared map[string]int
	units    map[string]int
	next     int
	skipped  []string
}

// Bound records the outcome of binding a list of inputs to a program.
type Bound struct {
	units   map[string]int
	count   int
	skipped []string
}

// Units returns the number of texture units assigned, one per Array2D and ImageRef input,
// including inputs skipped as unknown.
func (b *Bound) Units() int {
	return b.count
}

// Unit returns the texture unit assigned to a texture-backed input.
//
// Parameters:
//   - name: the input name
//
// Returns:
//   - int: the unit index
//   - bool: false if name is not a texture-backed input
func (b *Bound) Unit(name string) (int, bool) {
	u, ok := b.units[name]
	return u, ok
}

// Skipped returns the names of inputs skipped because the program does not declare them.
func (b *Bound) Skipped() []string {
	return b.skipped
}

// Bind attaches inputs to a compiled program in list order. Scalars are written into their
// uniform slot. Array2D and ImageRef inputs take the next texture unit, starting at 0, and are
// uploaded and bound to the texture variable of the same name. ImageRef waits for its image,
// which is the only step that honours ctx.
//
// An input the program does not declare fails with *UnknownUniform, or is logged and skipped
// under WithIgnoreUnknownUniforms. A skipped texture input still consumes its unit.
//
// Parameters:
//   - ctx: bounds the wait for ImageRef images
//   - target: the program to bind to
//   - inputs: the inputs in binding order
//   - opts: binding options
//
// Returns:
//   - *Bound: the unit assignment
//   - error: *UnknownUniform, *UnitMismatch, *loader.ImageLoadError, or an upload failure
func Bind(ctx context.Context, target Target, inputs []Binding, opts ...BindOption) (*Bound, error) {
	b := &binder{
		target:   target,
		declared: target.DeclaredUnits(),
		units:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, in := range inputs {
		var err error
		switch v := in.(type) {
		case Scalar:
			err = b.bindScalar(v)
		case Array2D:
			err = b.bindArray(v)
		case ImageRef:
			err = b.bindImage(ctx, v)
		default:
			err = errors.Errorf("unsupported binding %T", in)
		}
		if err != nil {
			return nil, err
		}
	}

	common.Logger().Debug("inputs bound", "program", b.label, "inputs", len(inputs), "units", b.next, "skipped", len(b.skipped))
	return &Bound{units: b.units, count: b.next, skipped: b.skipped}, nil
}

// unknown applies the unknown-name policy.
func (b *binder) unknown(name string) error {
	if !b.ignoreUnknown {
		return &UnknownUniform{Name: name}
	}
	common.Logger().Warn("skipping unknown uniform", "program", b.label, "name", name)
	b.skipped = append(b.skipped, name)
	return nil
}

// allocUnit assigns the next texture unit to name and checks it against any //@oxy:unit
// declaration.
func (b *binder) allocUnit(name string) (int, error) {
	unit := b.next
	b.next++
	b.units[name] = unit
	if declared, ok := b.declared[name]; ok && declared != unit {
		return unit, &UnitMismatch{Name: name, Declared: declared, Assigned: unit}
	}
	return unit, nil
}

func (b *binder) bindScalar(s Scalar) error {
	slot, ok := b.target.Uniform(s.Name)
	if !ok {
		return b.unknown(s.Name)
	}
	return b.target.WriteBuffer(BufferWrite{
		Group:   slot.Group,
		Binding: slot.Binding,
		Offset:  slot.Offset,
		Data:    encodeScalar(s.Value, slot.Kind),
	})
}

func (b *binder) bindArray(a Array2D) error {
	unit, err := b.allocUnit(a.Name)
	if err != nil {
		return err
	}
	if len(a.Data) != a.Width*a.Height*4 {
		return errors.Errorf("array %q holds %d bytes, %dx%d RGBA needs %d", a.Name, len(a.Data), a.Width, a.Height, a.Width*a.Height*4)
	}
	if !b.target.Texture(a.Name) {
		return b.unknown(a.Name)
	}
	tex := common.TextureStagingData{
		Pixels: a.Data,
		Width:  uint32(a.Width),
		Height: uint32(a.Height),
	}
	return errors.Wrapf(b.target.BindTexture(unit, a.Name, tex, common.NearestClampSampler), "bind array %q", a.Name)
}

func (b *binder) bindImage(ctx context.Context, i ImageRef) error {
	unit, err := b.allocUnit(i.Name)
	if err != nil {
		return err
	}
	if !b.target.Texture(i.Name) {
		return b.unknown(i.Name)
	}

	tex, err := i.Image.Wait(ctx)
	if err != nil {
		var loadErr *loader.ImageLoadError
		if errors.As(err, &loadErr) {
			return loadErr
		}
		return &loader.ImageLoadError{URL: i.Name, Err: err}
	}

	sampler := common.LinearClampSampler
	if common.IsPowerOf2(int(tex.Width)) && common.IsPowerOf2(int(tex.Height)) {
		tex = GenerateMipChain(tex)
		sampler = common.MipmappedRepeatSampler
	}
	return errors.Wrapf(b.target.BindTexture(unit, i.Name, tex, sampler), "bind image %q", i.Name)
}

// encodeScalar converts v to the slot's scalar type and returns its host order bytes.
func encodeScalar(v float32, kind shader.ScalarKind) []byte {
	out := make([]byte, 4)
	switch kind {
	case shader.ScalarI32:
		binary.NativeEndian.PutUint32(out, uint32(int32(v)))
	case shader.ScalarU32:
		binary.NativeEndian.PutUint32(out, uint32(int64(v)))
	default:
		binary.NativeEndian.PutUint32(out, math.Float32bits(v))
	}
	return out
}
