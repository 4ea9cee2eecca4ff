package render

import (
	"fmt"
	"os"
	"unsafe"

	pkgerrors "github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/kube-engine/internal/mesh"
	"github.com/hellhand/kube-engine/internal/scene"
)

const entryPoint = "main\x00"

type vertexLayout struct {
	stride uint32
	attrs  []vulkan.VertexInputAttributeDescription
}

var meshVertexLayout = vertexLayout{
	stride: mesh.VertexStride,
	attrs: []vulkan.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: mesh.OffsetPos},
		{Location: 1, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: mesh.OffsetTexCoord},
		{Location: 2, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: mesh.OffsetNormal},
	},
}

// graphicsPipeline describes everything that varies between the pipelines
// of objects, UIs and the HUD. The viewport is always the full swapchain
// extent, so pipelines are rebuilt with the swapchain.
type graphicsPipeline struct {
	vertPath, fragPath string
	layout             vulkan.PipelineLayout
	vertex             vertexLayout
	topology           vulkan.PrimitiveTopology
	polygon            vulkan.PolygonMode
	cull               vulkan.CullModeFlagBits
	depthTest          bool
}

func cullMode(c scene.CullMode) vulkan.CullModeFlagBits {
	switch c {
	case scene.CullBack:
		return vulkan.CullModeBackBit
	case scene.CullFront:
		return vulkan.CullModeFrontBit
	}
	return vulkan.CullModeNone
}

func topology(t scene.Topology) vulkan.PrimitiveTopology {
	switch t {
	case scene.LineList:
		return vulkan.PrimitiveTopologyLineList
	case scene.PointList:
		return vulkan.PrimitiveTopologyPointList
	}
	return vulkan.PrimitiveTopologyTriangleList
}

func polygonMode(p scene.PolygonMode) vulkan.PolygonMode {
	switch p {
	case scene.PolygonLine:
		return vulkan.PolygonModeLine
	case scene.PolygonPoint:
		return vulkan.PolygonModePoint
	}
	return vulkan.PolygonModeFill
}

func (r *Renderer) loadShaderModule(path string) (vulkan.ShaderModule, error) {
	code, err := os.ReadFile(r.cfg.Path(path))
	if err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), pkgerrors.Wrapf(err, "read shader %s", path)
	}
	module, err := r.createShaderModule(code)
	if err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("%s: %w", path, err)
	}
	return module, nil
}

func (r *Renderer) createShaderModule(code []byte) (vulkan.ShaderModule, error) {
	words, err := bytesToUint32(code)
	if err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), err
	}
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(r.device, &createInfo, nil, &module); res != vulkan.Success {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("create shader module: %w", vulkan.Error(res))
	}
	return module, nil
}

func bytesToUint32(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader code length %d is not a multiple of 4", len(data))
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4), nil
}

func (r *Renderer) createDescriptorSetLayout(bindings []vulkan.DescriptorSetLayoutBinding) (vulkan.DescriptorSetLayout, error) {
	layoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vulkan.DescriptorSetLayout
	if res := vulkan.CreateDescriptorSetLayout(r.device, &layoutInfo, nil, &layout); res != vulkan.Success {
		return vulkan.DescriptorSetLayout(vulkan.NullHandle), fmt.Errorf("create descriptor set layout: %w", vulkan.Error(res))
	}
	return layout, nil
}

func (r *Renderer) createPipelineLayout(sets []vulkan.DescriptorSetLayout, push []vulkan.PushConstantRange) (vulkan.PipelineLayout, error) {
	layoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(sets)),
		PSetLayouts:            sets,
		PushConstantRangeCount: uint32(len(push)),
		PPushConstantRanges:    push,
	}
	var layout vulkan.PipelineLayout
	if res := vulkan.CreatePipelineLayout(r.device, &layoutInfo, nil, &layout); res != vulkan.Success {
		return vulkan.PipelineLayout(vulkan.NullHandle), fmt.Errorf("create pipeline layout: %w", vulkan.Error(res))
	}
	return layout, nil
}

func (r *Renderer) createGraphicsPipeline(p graphicsPipeline) (vulkan.Pipeline, error) {
	vertModule, err := r.loadShaderModule(p.vertPath)
	if err != nil {
		return vulkan.Pipeline(vulkan.NullHandle), err
	}
	defer vulkan.DestroyShaderModule(r.device, vertModule, nil)
	fragModule, err := r.loadShaderModule(p.fragPath)
	if err != nil {
		return vulkan.Pipeline(vulkan.NullHandle), err
	}
	defer vulkan.DestroyShaderModule(r.device, fragModule, nil)

	shaderStages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vertModule,
			PName:  entryPoint,
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  entryPoint,
		},
	}

	bindingDescription := vulkan.VertexInputBindingDescription{
		Binding:   0,
		Stride:    p.vertex.stride,
		InputRate: vulkan.VertexInputRateVertex,
	}
	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vulkan.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(p.vertex.attrs)),
		PVertexAttributeDescriptions:    p.vertex.attrs,
	}

	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               p.topology,
		PrimitiveRestartEnable: vulkan.False,
	}

	viewport := vulkan.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(r.swapchainExtent.Width),
		Height:   float32(r.swapchainExtent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vulkan.Rect2D{
		Offset: vulkan.Offset2D{X: 0, Y: 0},
		Extent: r.swapchainExtent,
	}
	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vulkan.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vulkan.Rect2D{scissor},
	}

	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             p.polygon,
		LineWidth:               1.0,
		CullMode:                vulkan.CullModeFlags(p.cull),
		FrontFace:               vulkan.FrontFaceCounterClockwise,
		DepthBiasEnable:         vulkan.False,
	}

	multisampling := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: r.msaaSamples,
		MinSampleShading:     1.0,
	}

	depthStencil := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:                 vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vulkan.False,
		DepthWriteEnable:      vulkan.False,
		DepthCompareOp:        vulkan.CompareOpAlways,
		DepthBoundsTestEnable: vulkan.False,
		StencilTestEnable:     vulkan.False,
	}
	if p.depthTest {
		depthStencil.DepthTestEnable = vulkan.True
		depthStencil.DepthWriteEnable = vulkan.True
		depthStencil.DepthCompareOp = vulkan.CompareOpLess
	}

	colorBlendAttachment := vulkan.PipelineColorBlendAttachmentState{
		ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
		BlendEnable:    vulkan.False,
	}
	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vulkan.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		Layout:              p.layout,
		RenderPass:          r.renderPass,
		Subpass:             0,
	}

	pipelines := make([]vulkan.Pipeline, 1)
	if res := vulkan.CreateGraphicsPipelines(r.device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vulkan.Success {
		return vulkan.Pipeline(vulkan.NullHandle), fmt.Errorf("create graphics pipeline %s: %w", p.fragPath, vulkan.Error(res))
	}
	return pipelines[0], nil
}

func (r *Renderer) createComputePipeline(path string, layout vulkan.PipelineLayout) (vulkan.Pipeline, error) {
	module, err := r.loadShaderModule(path)
	if err != nil {
		return vulkan.Pipeline(vulkan.NullHandle), err
	}
	defer vulkan.DestroyShaderModule(r.device, module, nil)

	pipelineInfo := vulkan.ComputePipelineCreateInfo{
		SType: vulkan.StructureTypeComputePipelineCreateInfo,
		Stage: vulkan.PipelineShaderStageCreateInfo{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageComputeBit,
			Module: module,
			PName:  entryPoint,
		},
		Layout: layout,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	if res := vulkan.CreateComputePipelines(r.device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.ComputePipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vulkan.Success {
		return vulkan.Pipeline(vulkan.NullHandle), fmt.Errorf("create compute pipeline %s: %w", path, vulkan.Error(res))
	}
	return pipelines[0], nil
}

func (r *Renderer) createDescriptorPool(sizes []vulkan.DescriptorPoolSize, maxSets uint32) (vulkan.DescriptorPool, error) {
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vulkan.DescriptorPool
	if res := vulkan.CreateDescriptorPool(r.device, &poolInfo, nil, &pool); res != vulkan.Success {
		return vulkan.DescriptorPool(vulkan.NullHandle), fmt.Errorf("create descriptor pool: %w", vulkan.Error(res))
	}
	return pool, nil
}

// allocateDescriptorSets allocates one set per swapchain image.
func (r *Renderer) allocateDescriptorSets(pool vulkan.DescriptorPool, layout vulkan.DescriptorSetLayout) ([]vulkan.DescriptorSet, error) {
	n := len(r.swapchainImages)
	layouts := make([]vulkan.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = layout
	}
	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(n),
		PSetLayouts:        layouts,
	}
	sets := make([]vulkan.DescriptorSet, n)
	if res := vulkan.AllocateDescriptorSets(r.device, &allocInfo, &sets[0]); res != vulkan.Success {
		return nil, fmt.Errorf("allocate descriptor sets: %w", vulkan.Error(res))
	}
	return sets, nil
}

// createUniformBuffers makes one host-visible buffer of size bytes per
// swapchain image.
func (r *Renderer) createUniformBuffers(size vulkan.DeviceSize) ([]buffer, error) {
	bufs := make([]buffer, len(r.swapchainImages))
	for i := range bufs {
		b, err := r.createBuffer(size,
			vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit),
			vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
		if err != nil {
			for j := 0; j < i; j++ {
				bufs[j].destroy(r.device)
			}
			return nil, fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		bufs[i] = b
	}
	return bufs, nil
}

func destroyPipeline(device vulkan.Device, p *vulkan.Pipeline) {
	if *p != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(device, *p, nil)
		*p = vulkan.Pipeline(vulkan.NullHandle)
	}
}

func destroyPipelineLayout(device vulkan.Device, l *vulkan.PipelineLayout) {
	if *l != vulkan.PipelineLayout(vulkan.NullHandle) {
		vulkan.DestroyPipelineLayout(device, *l, nil)
		*l = vulkan.PipelineLayout(vulkan.NullHandle)
	}
}

func destroyDescriptorPool(device vulkan.Device, p *vulkan.DescriptorPool) {
	if *p != vulkan.DescriptorPool(vulkan.NullHandle) {
		vulkan.DestroyDescriptorPool(device, *p, nil)
		*p = vulkan.DescriptorPool(vulkan.NullHandle)
	}
}

func destroyBuffers(device vulkan.Device, bufs []buffer) {
	for i := range bufs {
		bufs[i].destroy(device)
	}
}
