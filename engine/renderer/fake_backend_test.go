package renderer

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/pkg/errors"
)

// fakeShade computes one output pixel on the CPU in place of a fragment stage.
type fakeShade func(p *fakeProgram, x, y int) [4]byte

// fakeBackend is an in-memory RendererBackend. Programs are "run" by the fakeShade registered
// under their key; programs without one draw opaque black.
type fakeBackend struct {
	shades       map[string]fakeShade
	maxDimension int

	width, height int
	acquired      bool
	quad          bool
	pixels        []byte
	drawn         bool
	released      bool

	draws    int
	programs []*fakeProgram
	inDraw   atomic.Int32
	overlap  atomic.Bool
}

func newFakeBackend(shades map[string]fakeShade) *fakeBackend {
	return &fakeBackend{shades: shades, maxDimension: 8192}
}

func (b *fakeBackend) Acquire(width, height int) error {
	if b.released {
		return &ContextUnavailable{Reason: "backend released"}
	}
	if width <= 0 || height <= 0 || width > b.maxDimension || height > b.maxDimension {
		return &ContextUnavailable{Reason: "invalid size"}
	}
	b.width, b.height = width, height
	b.acquired = true
	b.drawn = false
	return nil
}

func (b *fakeBackend) CompileProgram(linked *shader.Linked, _ *pipeline.ProgramDescriptor) (Program, error) {
	p := &fakeProgram{
		linked:   linked,
		buffers:  make(map[slotKey][]byte),
		textures: make(map[string]common.TextureStagingData),
		units:    make(map[string]int),
	}
	for _, r := range linked.Resources() {
		if r.Kind == shader.ResourceKindBuffer {
			p.buffers[slotKey{r.Group, r.Binding}] = make([]byte, max(r.Entry.Buffer.MinBindingSize, 16))
		}
	}
	b.programs = append(b.programs, p)
	return p, nil
}

func (b *fakeBackend) UploadQuad() error {
	b.quad = true
	return nil
}

func (b *fakeBackend) Draw(p Program) error {
	if b.inDraw.Add(1) > 1 {
		b.overlap.Store(true)
	}
	defer b.inDraw.Add(-1)

	if !b.acquired {
		return &SurfaceNotReady{Reason: "no surface acquired"}
	}
	if !b.quad {
		return errors.New("quad not uploaded")
	}
	fp := p.(*fakeProgram)
	shade := b.shades[fp.Key()]
	b.pixels = make([]byte, b.width*b.height*4)
	for y := range b.height {
		for x := range b.width {
			px := [4]byte{0, 0, 0, 255}
			if shade != nil {
				px = shade(fp, x, y)
			}
			copy(b.pixels[(y*b.width+x)*4:], px[:])
		}
	}
	b.draws++
	b.drawn = true
	return nil
}

func (b *fakeBackend) ReadPixels() ([]byte, error) {
	if b.released || !b.drawn {
		return nil, &SurfaceNotReady{Reason: "nothing drawn"}
	}
	return append([]byte(nil), b.pixels...), nil
}

func (b *fakeBackend) Present() error {
	return nil
}

func (b *fakeBackend) Release() {
	b.released = true
	b.acquired = false
	b.drawn = false
}

// fakeProgram keeps uniform buffers and textures in memory.
type fakeProgram struct {
	linked   *shader.Linked
	buffers  map[slotKey][]byte
	textures map[string]common.TextureStagingData
	samplers map[string]common.SamplerStagingData
	units    map[string]int
	released bool
}

func (p *fakeProgram) Key() string {
	return p.linked.Key
}

func (p *fakeProgram) Uniform(name string) (shader.UniformSlot, bool) {
	return p.linked.Uniform(name)
}

func (p *fakeProgram) WriteBuffer(w bind_group_provider.BufferWrite) error {
	buf, ok := p.buffers[slotKey{w.Group, w.Binding}]
	if !ok {
		return errors.Errorf("no buffer at %d/%d", w.Group, w.Binding)
	}
	if int(w.Offset)+len(w.Data) > len(buf) {
		return errors.New("write out of range")
	}
	copy(buf[w.Offset:], w.Data)
	return nil
}

func (p *fakeProgram) Texture(name string) bool {
	r, ok := p.linked.Resource(name)
	return ok && r.Kind == shader.ResourceKindTexture
}

func (p *fakeProgram) BindTexture(unit int, name string, tex common.TextureStagingData, _ common.SamplerStagingData) error {
	p.textures[name] = tex
	p.units[name] = unit
	return nil
}

func (p *fakeProgram) DeclaredUnits() map[string]int {
	return p.linked.Units
}

func (p *fakeProgram) Release() {
	p.released = true
}

// f32 reads a float uniform scalar.
func (p *fakeProgram) f32(name string) float32 {
	slot, ok := p.linked.Uniform(name)
	if !ok {
		return 0
	}
	buf := p.buffers[slotKey{slot.Group, slot.Binding}]
	return math.Float32frombits(binary.NativeEndian.Uint32(buf[slot.Offset:]))
}

// i32 reads a signed integer uniform scalar.
func (p *fakeProgram) i32(name string) int32 {
	slot, ok := p.linked.Uniform(name)
	if !ok {
		return 0
	}
	buf := p.buffers[slotKey{slot.Group, slot.Binding}]
	return int32(binary.NativeEndian.Uint32(buf[slot.Offset:]))
}

// texel returns the RGBA bytes of a bound texture at (x, y), clamped to its edges.
func (p *fakeProgram) texel(name string, x, y int) [4]byte {
	tex, ok := p.textures[name]
	if !ok {
		return [4]byte{}
	}
	x = min(max(x, 0), int(tex.Width)-1)
	y = min(max(y, 0), int(tex.Height)-1)
	i := (y*int(tex.Width) + x) * 4
	return [4]byte(tex.Pixels[i : i+4])
}

// staticImage is an ImageSource that resolves immediately to a black w*h image.
type staticImage struct {
	w, h uint32
}

func (i staticImage) Wait(context.Context) (common.TextureStagingData, error) {
	return common.TextureStagingData{Pixels: make([]byte, i.w*i.h*4), Width: i.w, Height: i.h}, nil
}
