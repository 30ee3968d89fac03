package renderer

import (
	"crypto/sha256"
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// copyRowAlignment is the row pitch alignment WebGPU requires for texture to buffer copies.
const copyRowAlignment = 256

// targetFormat is the format of the off-screen render target. It is not an sRGB format, so
// fragment outputs are stored without any colour space conversion.
const targetFormat = wgpu.TextureFormatRGBA8Unorm

// blitFragmentSource copies the render target onto the preview window surface.
const blitFragmentSource = `//@oxy:include quad_varyings
@group(0) @binding(0) var frame: texture_2d<f32>;
@group(0) @binding(1) var frame_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(frame, frame_sampler, in.uv);
}
`

// WGPUBackendOptions configures NewWGPUBackend.
type WGPUBackendOptions struct {
	// ForceFallbackAdapter requests a CPU/software adapter instead of hardware acceleration.
	// This requires a software Vulkan ICD (e.g. SwiftShader or lavapipe).
	ForceFallbackAdapter bool

	// SurfaceDescriptor, when set, creates a window surface that Present copies the render target to.
	SurfaceDescriptor *wgpu.SurfaceDescriptor

	// PresentMode is the window surface present mode.
	PresentMode PresentMode
}

type wgpuRendererBackendImpl struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	maxDimension uint32

	// Off-screen render target and the buffer it is copied into after each draw.
	target        *wgpu.Texture
	targetView    *wgpu.TextureView
	readback      *wgpu.Buffer
	width, height int
	paddedRow     uint32
	drawn         bool

	quad    *wgpu.Buffer
	modules map[[sha256.Size]byte]*wgpu.ShaderModule

	// Preview window state, nil when no window was supplied.
	surface            *wgpu.Surface
	surfaceFormat      wgpu.TextureFormat
	surfaceConfigured  [2]int
	presentMode        wgpu.PresentMode
	blitPipeline       *wgpu.RenderPipeline
	blitLayout         *wgpu.BindGroupLayout
	blitPipelineLayout *wgpu.PipelineLayout
	blitProvider       bind_group_provider.BindGroupProvider
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// NewWGPUBackend creates a wgpu device with an optional preview window surface. Without a
// surface the device renders headless.
//
// Parameters:
//   - opts: adapter and window options
//
// Returns:
//   - RendererBackend: the backend
//   - error: *ContextUnavailable if no adapter or device can be obtained
func NewWGPUBackend(opts WGPUBackendOptions) (RendererBackend, error) {
	b := &wgpuRendererBackendImpl{
		instance:    wgpu.CreateInstance(nil),
		modules:     make(map[[sha256.Size]byte]*wgpu.ShaderModule),
		presentMode: wgpu.PresentModeImmediate,
	}
	if opts.PresentMode == PresentModeVSync {
		b.presentMode = wgpu.PresentModeFifo
	}
	if opts.SurfaceDescriptor != nil {
		b.surface = b.instance.CreateSurface(opts.SurfaceDescriptor)
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil || a == nil {
		b.Release()
		return nil, &ContextUnavailable{Reason: fmt.Sprintf("no adapter: %v", err)}
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Compute Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil || d == nil {
		b.Release()
		return nil, &ContextUnavailable{Reason: fmt.Sprintf("no device: %v", err)}
	}
	b.device = d
	b.queue = d.GetQueue()
	b.maxDimension = limits.MaxTextureDimension2D

	common.Logger().Info("wgpu device ready", "fallback", opts.ForceFallbackAdapter,
		"max_dimension", b.maxDimension, "preview", b.surface != nil)
	return b, nil
}

// alignedBytesPerRow returns the row pitch of a texture to buffer copy of an RGBA8 surface.
func alignedBytesPerRow(width int) uint32 {
	row := uint32(width) * 4
	return (row + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
}

// quadPrimitiveState draws the quad as a triangle strip with culling off. Both strip triangles
// share one winding, so any cull mode would drop the whole quad.
func quadPrimitiveState() wgpu.PrimitiveState {
	return wgpu.PrimitiveState{
		Topology:  wgpu.PrimitiveTopologyTriangleStrip,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  wgpu.CullModeNone,
	}
}

// colorTargetState writes all four channels of the RGBA8 target; a partial mask would leave
// cleared bytes inside numeric results.
func colorTargetState(blend *wgpu.BlendState) wgpu.ColorTargetState {
	return wgpu.ColorTargetState{
		Format:    targetFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
		Blend:     blend,
	}
}

// stripRowPadding copies height rows of width*4 bytes out of a buffer whose rows are
// paddedRow bytes apart.
func stripRowPadding(padded []byte, width, height int, paddedRow uint32) []byte {
	row := width * 4
	out := make([]byte, row*height)
	for y := range height {
		src := int(paddedRow) * y
		copy(out[y*row:(y+1)*row], padded[src:src+row])
	}
	return out
}

func (b *wgpuRendererBackendImpl) Acquire(width, height int) error {
	if b.device == nil {
		return &ContextUnavailable{Reason: "backend released"}
	}
	if width <= 0 || height <= 0 {
		return &ContextUnavailable{Reason: fmt.Sprintf("invalid surface size %dx%d", width, height)}
	}
	if uint32(width) > b.maxDimension || uint32(height) > b.maxDimension {
		return &ContextUnavailable{Reason: fmt.Sprintf("surface size %dx%d exceeds the device limit %d", width, height, b.maxDimension)}
	}
	b.drawn = false
	if b.target != nil && b.width == width && b.height == height {
		return nil
	}
	b.releaseTarget()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Render Target",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        targetFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return &ContextUnavailable{Reason: fmt.Sprintf("create render target: %v", err)}
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return &ContextUnavailable{Reason: fmt.Sprintf("create render target view: %v", err)}
	}

	paddedRow := alignedBytesPerRow(width)
	readback, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback Buffer",
		Size:  uint64(paddedRow) * uint64(height),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return &ContextUnavailable{Reason: fmt.Sprintf("create readback buffer: %v", err)}
	}

	b.target, b.targetView, b.readback = tex, view, readback
	b.width, b.height, b.paddedRow = width, height, paddedRow
	common.Logger().Debug("render target acquired", "width", width, "height", height, "row_pitch", paddedRow)
	return nil
}

// module returns the compiled shader module for source, compiling it on first use.
func (b *wgpuRendererBackendImpl) module(s shader.Shader) (*wgpu.ShaderModule, error) {
	sum := sha256.Sum256([]byte(s.Source()))
	if m, ok := b.modules[sum]; ok {
		return m, nil
	}
	m, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, &shader.ShaderCompileError{Stage: s.ShaderType(), Key: s.Key(), Log: err.Error()}
	}
	b.modules[sum] = m
	return m, nil
}

func (b *wgpuRendererBackendImpl) CompileProgram(linked *shader.Linked, desc *pipeline.ProgramDescriptor) (Program, error) {
	if b.device == nil {
		return nil, &ContextUnavailable{Reason: "backend released"}
	}
	vs, err := b.module(linked.Vertex)
	if err != nil {
		return nil, err
	}
	fs, err := b.module(linked.Fragment)
	if err != nil {
		return nil, err
	}

	vertexLayouts := linked.Vertex.VertexLayouts()
	if err := checkQuadLayout(vertexLayouts); err != nil {
		return nil, &shader.ProgramLinkError{Key: linked.Key, Log: err.Error()}
	}

	p := &wgpuProgram{
		key:       linked.Key,
		device:    b.device,
		queue:     b.queue,
		linked:    linked,
		resources: make(map[slotKey]shader.Resource),
		sizes:     make(map[slotKey]uint64),
		usesQuad:  len(vertexLayouts) > 0,
	}
	fail := func(err error) (Program, error) {
		p.Release()
		return nil, &shader.ProgramLinkError{Key: linked.Key, Log: err.Error()}
	}

	p.layouts = make([]*wgpu.BindGroupLayout, len(linked.Layouts))
	p.providers = make([]bind_group_provider.BindGroupProvider, len(linked.Layouts))
	for g := range linked.Layouts {
		p.providers[g] = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s group %d", linked.Key, g))
		layout, err := b.device.CreateBindGroupLayout(&linked.Layouts[g])
		if err != nil {
			return fail(errors.Wrapf(err, "create bind group layout %d", g))
		}
		p.layouts[g] = layout
	}

	for _, r := range linked.Resources() {
		k := slotKey{r.Group, r.Binding}
		p.resources[k] = r
		switch r.Kind {
		case shader.ResourceKindStorageTexture:
			return fail(errors.Errorf("storage texture %q is not supported", r.Name))
		case shader.ResourceKindBuffer:
			usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
			if r.Entry.Buffer.Type != wgpu.BufferBindingTypeUniform {
				usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
			}
			size := max(r.Entry.Buffer.MinBindingSize, 16)
			buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s %s Buffer", linked.Key, r.Name),
				Size:  size,
				Usage: usage,
			})
			if err != nil {
				return fail(errors.Wrapf(err, "create buffer %q", r.Name))
			}
			// new buffers are zero initialized
			p.providers[r.Group].SetBuffer(r.Binding, buf)
			p.sizes[k] = size
		}
	}

	p.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            linked.Key,
		BindGroupLayouts: p.layouts,
	})
	if err != nil {
		return fail(errors.Wrap(err, "create pipeline layout"))
	}

	target := colorTargetState(desc.BlendState())
	p.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  linked.Key + " Render Pipeline",
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: linked.Vertex.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: linked.Fragment.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: quadPrimitiveState(),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fail(errors.Wrap(err, "create render pipeline"))
	}

	common.Logger().Debug("program compiled", "program", linked.Key, "groups", len(p.layouts), "quad", p.usesQuad)
	return p, nil
}

// checkQuadLayout accepts vertex stages without inputs, or with exactly one vec2<f32> input at
// @location(0) that the quad buffer feeds.
func checkQuadLayout(layouts []wgpu.VertexBufferLayout) error {
	if len(layouts) == 0 {
		return nil
	}
	attrs := layouts[0].Attributes
	if len(layouts) != 1 || len(attrs) != 1 || attrs[0].ShaderLocation != 0 || attrs[0].Format != wgpu.VertexFormatFloat32x2 {
		return errors.New("the vertex stage may only read the quad position, @location(0) vec2<f32>")
	}
	return nil
}

func (b *wgpuRendererBackendImpl) UploadQuad() error {
	if b.quad != nil {
		return nil
	}
	if b.device == nil {
		return &ContextUnavailable{Reason: "backend released"}
	}
	data := common.SliceToBytes(QuadVertices)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Quad Vertex Buffer",
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return errors.Wrap(err, "create quad buffer")
	}
	b.queue.WriteBuffer(buf, 0, data)
	b.quad = buf
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(p Program) error {
	if b.target == nil {
		return &SurfaceNotReady{Reason: "no surface acquired"}
	}
	prog, ok := p.(*wgpuProgram)
	if !ok {
		return errors.Errorf("program %q was not compiled by the wgpu backend", p.Key())
	}
	if prog.usesQuad && b.quad == nil {
		return errors.New("quad not uploaded")
	}
	if err := prog.prepareBindGroups(); err != nil {
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "create command encoder")
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: prog.key + " Render Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.targetView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	pass.SetPipeline(prog.pipeline)
	for i, provider := range prog.providers {
		pass.SetBindGroup(uint32(i), provider.BindGroup(), nil)
	}
	if prog.usesQuad {
		pass.SetVertexBuffer(0, b.quad, 0, wgpu.WholeSize)
	}
	pass.Draw(uint32(len(QuadVertices)/2), 1, 0, 0)
	pass.End()
	pass.Release()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  b.target,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: b.readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  b.paddedRow,
				RowsPerImage: uint32(b.height),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(b.width),
			Height:             uint32(b.height),
			DepthOrArrayLayers: 1,
		},
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "finish command encoder")
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)
	b.device.Poll(true, nil)

	b.drawn = true
	return nil
}

func (b *wgpuRendererBackendImpl) ReadPixels() ([]byte, error) {
	if b.device == nil {
		return nil, &SurfaceNotReady{Reason: "backend released"}
	}
	if !b.drawn {
		return nil, &SurfaceNotReady{Reason: "nothing drawn since the surface was acquired"}
	}

	size := uint64(b.paddedRow) * uint64(b.height)
	done := make(chan error, 1)
	err := b.readback.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- errors.Errorf("map readback buffer: %v", status)
			return
		}
		done <- nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "map readback buffer")
	}
	b.device.Poll(true, nil)
	if err := <-done; err != nil {
		return nil, err
	}

	out := stripRowPadding(b.readback.GetMappedRange(0, uint(size)), b.width, b.height, b.paddedRow)
	b.readback.Unmap()
	return out, nil
}

func (b *wgpuRendererBackendImpl) Present() error {
	if b.surface == nil {
		return nil
	}
	if b.target == nil {
		return &SurfaceNotReady{Reason: "no surface acquired"}
	}
	if err := b.prepareBlit(); err != nil {
		return err
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return errors.Wrap(err, "acquire window surface")
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return errors.Wrap(err, "create window surface view")
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "create command encoder")
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Preview Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	pass.SetPipeline(b.blitPipeline)
	pass.SetBindGroup(0, b.blitProvider.BindGroup(), nil)
	pass.SetVertexBuffer(0, b.quad, 0, wgpu.WholeSize)
	pass.Draw(uint32(len(QuadVertices)/2), 1, 0, 0)
	pass.End()
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "finish command encoder")
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)
	b.surface.Present()
	return nil
}

// prepareBlit configures the window surface at the render target size and builds the blit
// pipeline and its bind group when missing.
func (b *wgpuRendererBackendImpl) prepareBlit() error {
	if b.surfaceConfigured != [2]int{b.width, b.height} {
		capabilities := b.surface.GetCapabilities(b.adapter)
		if len(capabilities.Formats) == 0 {
			return &ContextUnavailable{Reason: "window surface reports no formats"}
		}
		b.surfaceFormat = capabilities.Formats[0]
		b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
			Usage:       wgpu.TextureUsageRenderAttachment,
			Format:      b.surfaceFormat,
			Width:       uint32(b.width),
			Height:      uint32(b.height),
			PresentMode: b.presentMode,
			AlphaMode:   capabilities.AlphaModes[0],
		})
		b.surfaceConfigured = [2]int{b.width, b.height}
	}
	if err := b.UploadQuad(); err != nil {
		return err
	}

	if b.blitPipeline == nil {
		vs, err := shader.NewShader("blit", shader.ShaderTypeVertex, pipeline.DefaultVertexShader)
		if err != nil {
			return err
		}
		fs, err := shader.NewShader("blit", shader.ShaderTypeFragment, blitFragmentSource)
		if err != nil {
			return err
		}
		linked, err := shader.Link("blit", vs, fs)
		if err != nil {
			return err
		}
		vsModule, err := b.module(vs)
		if err != nil {
			return err
		}
		fsModule, err := b.module(fs)
		if err != nil {
			return err
		}
		b.blitLayout, err = b.device.CreateBindGroupLayout(&linked.Layouts[0])
		if err != nil {
			return errors.Wrap(err, "create blit bind group layout")
		}
		b.blitPipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            "blit",
			BindGroupLayouts: []*wgpu.BindGroupLayout{b.blitLayout},
		})
		if err != nil {
			return errors.Wrap(err, "create blit pipeline layout")
		}
		b.blitPipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  "Blit Render Pipeline",
			Layout: b.blitPipelineLayout,
			Vertex: wgpu.VertexState{
				Module:     vsModule,
				EntryPoint: vs.EntryPoint(),
				Buffers:    vs.VertexLayouts(),
			},
			Fragment: &wgpu.FragmentState{
				Module:     fsModule,
				EntryPoint: fs.EntryPoint(),
				Targets: []wgpu.ColorTargetState{{
					Format:    b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				}},
			},
			Primitive: quadPrimitiveState(),
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
		if err != nil {
			return errors.Wrap(err, "create blit pipeline")
		}
		b.blitProvider = bind_group_provider.NewBindGroupProvider("blit")
	}

	if b.blitProvider.BindGroup() == nil {
		s, err := createSampler(b.device, "blit sampler", common.LinearClampSampler)
		if err != nil {
			return err
		}
		b.blitProvider.SetSampler(1, s)
		bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  "blit Bind Group",
			Layout: b.blitLayout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: b.targetView},
				{Binding: 1, Sampler: s},
			},
		})
		if err != nil {
			return errors.Wrap(err, "create blit bind group")
		}
		b.blitProvider.SetBindGroup(bg)
	}
	return nil
}

// releaseTarget releases the render target, its readback buffer and the blit bind group that
// samples it.
func (b *wgpuRendererBackendImpl) releaseTarget() {
	if b.blitProvider != nil {
		b.blitProvider.Release()
	}
	if b.readback != nil {
		b.readback.Release()
		b.readback = nil
	}
	if b.targetView != nil {
		b.targetView.Release()
		b.targetView = nil
	}
	if b.target != nil {
		b.target.Release()
		b.target = nil
	}
	b.width, b.height, b.paddedRow = 0, 0, 0
	b.drawn = false
}

func (b *wgpuRendererBackendImpl) Release() {
	b.releaseTarget()
	if b.blitPipeline != nil {
		b.blitPipeline.Release()
		b.blitPipeline = nil
	}
	if b.blitPipelineLayout != nil {
		b.blitPipelineLayout.Release()
		b.blitPipelineLayout = nil
	}
	if b.blitLayout != nil {
		b.blitLayout.Release()
		b.blitLayout = nil
	}
	b.blitProvider = nil
	if b.quad != nil {
		b.quad.Release()
		b.quad = nil
	}
	for k, m := range b.modules {
		m.Release()
		delete(b.modules, k)
	}
	b.queue = nil
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
