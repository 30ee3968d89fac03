package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// slotKey addresses one @group/@binding slot.
type slotKey struct {
	group, binding int
}

// wgpuProgram is the wgpu backend's Program. It owns one BindGroupProvider per bind group index;
// uniform buffers are created with the program, textures and samplers while inputs are bound.
type wgpuProgram struct {
	key    string
	device *wgpu.Device
	queue  *wgpu.Queue

	linked    *shader.Linked
	resources map[slotKey]shader.Resource
	sizes     map[slotKey]uint64

	layouts        []*wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipeline       *wgpu.RenderPipeline
	providers      []bind_group_provider.BindGroupProvider

	// usesQuad is true when the vertex stage reads the quad position attribute.
	usesQuad bool
}

var _ Program = &wgpuProgram{}

func (p *wgpuProgram) Key() string {
	return p.key
}

func (p *wgpuProgram) Uniform(name string) (shader.UniformSlot, bool) {
	return p.linked.Uniform(name)
}

func (p *wgpuProgram) DeclaredUnits() map[string]int {
	return p.linked.Units
}

func (p *wgpuProgram) Texture(name string) bool {
	r, ok := p.linked.Resource(name)
	return ok && r.Kind == shader.ResourceKindTexture
}

func (p *wgpuProgram) WriteBuffer(w bind_group_provider.BufferWrite) error {
	k := slotKey{w.Group, w.Binding}
	size, ok := p.sizes[k]
	if !ok || w.Group >= len(p.providers) {
		return errors.Errorf("program %q has no buffer at group %d binding %d", p.key, w.Group, w.Binding)
	}
	if w.Offset+uint64(len(w.Data)) > size {
		return errors.Errorf("program %q: write of %d bytes at offset %d overflows the %d byte buffer at group %d binding %d",
			p.key, len(w.Data), w.Offset, size, w.Group, w.Binding)
	}
	p.queue.WriteBuffer(p.providers[w.Group].Buffer(w.Binding), w.Offset, w.Data)
	return nil
}

func (p *wgpuProgram) BindTexture(unit int, name string, tex common.TextureStagingData, sampler common.SamplerStagingData) error {
	r, ok := p.linked.Resource(name)
	if !ok || r.Kind != shader.ResourceKindTexture {
		return errors.Errorf("program %q declares no texture %q", p.key, name)
	}
	if r.Entry.Texture.ViewDimension != wgpu.TextureViewDimension2D {
		return errors.Errorf("texture %q is not a texture_2d", name)
	}
	if !tex.Valid() {
		return errors.Errorf("texture %q: %d bytes do not cover %dx%d RGBA", name, len(tex.Pixels), tex.Width, tex.Height)
	}

	label := fmt.Sprintf("%s unit %d %s", p.key, unit, name)
	gpuTex, view, err := createTexture(p.device, p.queue, label, tex)
	if err != nil {
		return err
	}
	p.providers[r.Group].SetTexture(r.Binding, gpuTex, view)

	if sr, ok := p.linked.Resource(name + "_sampler"); ok && sr.Kind == shader.ResourceKindSampler {
		s, err := createSampler(p.device, label+" sampler", sampler)
		if err != nil {
			return err
		}
		p.providers[sr.Group].SetSampler(sr.Binding, s)
	}
	common.Logger().Debug("texture bound", "program", p.key, "unit", unit, "name", name,
		"width", tex.Width, "height", tex.Height, "mips", 1+len(tex.MipLevels))
	return nil
}

// prepareBindGroups creates the bind group of every group from the resources bound so far.
// Textures no input was bound to read as transparent black through a 1x1 placeholder, and
// samplers without a configured texture use NearestClampSampler.
func (p *wgpuProgram) prepareBindGroups() error {
	for g, provider := range p.providers {
		desc := p.linked.Layouts[g]
		entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
		for _, e := range desc.Entries {
			binding := int(e.Binding)
			r := p.resources[slotKey{g, binding}]
			switch r.Kind {
			case shader.ResourceKindBuffer:
				entries = append(entries, wgpu.BindGroupEntry{
					Binding: e.Binding,
					Buffer:  provider.Buffer(binding),
					Offset:  0,
					Size:    wgpu.WholeSize,
				})
			case shader.ResourceKindTexture:
				if provider.TextureView(binding) == nil {
					tex, view, err := createTexture(p.device, p.queue, p.key+" placeholder "+r.Name, common.TextureStagingData{
						Pixels: make([]byte, 4), Width: 1, Height: 1,
					})
					if err != nil {
						return err
					}
					provider.SetTexture(binding, tex, view)
				}
				entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, TextureView: provider.TextureView(binding)})
			case shader.ResourceKindSampler:
				if provider.Sampler(binding) == nil {
					s, err := createSampler(p.device, p.key+" default sampler "+r.Name, common.NearestClampSampler)
					if err != nil {
						return err
					}
					provider.SetSampler(binding, s)
				}
				entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Sampler: provider.Sampler(binding)})
			}
		}

		bg, err := p.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   provider.Label() + " Bind Group",
			Layout:  p.layouts[g],
			Entries: entries,
		})
		if err != nil {
			return errors.Wrapf(err, "program %q: create bind group %d", p.key, g)
		}
		provider.SetBindGroup(bg)
	}
	return nil
}

func (p *wgpuProgram) Release() {
	for _, provider := range p.providers {
		provider.Release()
	}
	p.providers = nil
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	for _, l := range p.layouts {
		if l != nil {
			l.Release()
		}
	}
	p.layouts = nil
	common.Logger().Debug("program released", "program", p.key)
}

// createTexture uploads tex, including its mip chain, into a new RGBA8Unorm texture.
func createTexture(device *wgpu.Device, queue *wgpu.Queue, label string, tex common.TextureStagingData) (*wgpu.Texture, *wgpu.TextureView, error) {
	levels := 1 + len(tex.MipLevels)
	gpuTex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              tex.Width,
			Height:             tex.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: uint32(levels),
		SampleCount:   1,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create texture %q", label)
	}

	for level := range levels {
		pixels := tex.Pixels
		if level > 0 {
			pixels = tex.MipLevels[level-1]
		}
		w, h := tex.MipLevelSize(level)
		queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  gpuTex,
				MipLevel: uint32(level),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  w * 4,
				RowsPerImage: h,
			},
			&wgpu.Extent3D{
				Width:              w,
				Height:             h,
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := gpuTex.CreateView(nil)
	if err != nil {
		gpuTex.Release()
		return nil, nil, errors.Wrapf(err, "create view of texture %q", label)
	}
	return gpuTex, view, nil
}

// createSampler creates a sampler, filling zero fields with repeat addressing and linear filtering.
func createSampler(device *wgpu.Device, label string, s common.SamplerStagingData) (*wgpu.Sampler, error) {
	samp, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(s.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(s.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   s.LodMinClamp,
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
	})
	return samp, errors.Wrapf(err, "create sampler %q", label)
}
