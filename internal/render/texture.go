package render

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/ppm"
	pkgerrors "github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hellhand/kube-engine/internal/mesh"
)

var ErrLinearBlitUnsupported = errors.New("texture format does not support linear blitting")

const textureFormat = vulkan.FormatR8g8b8a8Srgb

type texture struct {
	image  vulkan.Image
	memory vulkan.DeviceMemory
	view   vulkan.ImageView
	mips   uint32
}

func (t *texture) destroy(device vulkan.Device) {
	if t.view != vulkan.ImageView(vulkan.NullHandle) {
		vulkan.DestroyImageView(device, t.view, nil)
	}
	if t.image != vulkan.Image(vulkan.NullHandle) {
		vulkan.DestroyImage(device, t.image, nil)
	}
	if t.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(device, t.memory, nil)
	}
	*t = texture{}
}

// decodeImage reads any registered image format, plus binary PPM, and
// returns it as tightly packed RGBA.
func decodeImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open texture %s", path)
	}
	defer f.Close()

	var src image.Image
	if strings.EqualFold(filepath.Ext(path), ".ppm") {
		src, err = ppm.Decode(f)
	} else {
		src, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "decode texture %s", path)
	}
	return toRGBA(src), nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// createTextureImage uploads the image at path with a full mip chain and
// leaves every level in SHADER_READ_ONLY layout.
func (r *Renderer) createTextureImage(path string) (texture, error) {
	pixels, err := decodeImage(path)
	if err != nil {
		return texture{}, err
	}
	w, h := uint32(pixels.Rect.Dx()), uint32(pixels.Rect.Dy())
	mips := mesh.MipLevels(int(w), int(h))

	staging, err := r.createStaging(pixels.Pix)
	if err != nil {
		return texture{}, err
	}
	defer staging.destroy(r.device)

	img, memory, err := r.createImage(imageSpec{
		width:   w,
		height:  h,
		mips:    mips,
		samples: vulkan.SampleCount1Bit,
		format:  textureFormat,
		tiling:  vulkan.ImageTilingOptimal,
		usage:   vulkan.ImageUsageFlags(vulkan.ImageUsageTransferSrcBit | vulkan.ImageUsageTransferDstBit | vulkan.ImageUsageSampledBit),
		props:   vulkan.MemoryPropertyDeviceLocalBit,
	})
	if err != nil {
		return texture{}, fmt.Errorf("create texture image %s: %w", path, err)
	}
	tex := texture{image: img, memory: memory, mips: mips}

	if err := r.transitionImageLayout(img, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal, mips); err != nil {
		tex.destroy(r.device)
		return texture{}, err
	}
	if err := r.copyBufferToImage(staging.handle, img, w, h); err != nil {
		tex.destroy(r.device)
		return texture{}, err
	}
	if err := r.generateMipmaps(img, textureFormat, int32(w), int32(h), mips); err != nil {
		tex.destroy(r.device)
		return texture{}, err
	}

	view, err := r.createImageView(img, textureFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit), mips)
	if err != nil {
		tex.destroy(r.device)
		return texture{}, err
	}
	tex.view = view
	return tex, nil
}

func colorRange(baseMip, levels uint32) vulkan.ImageSubresourceRange {
	return vulkan.ImageSubresourceRange{
		AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
		BaseMipLevel:   baseMip,
		LevelCount:     levels,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (r *Renderer) transitionImageLayout(img vulkan.Image, oldLayout, newLayout vulkan.ImageLayout, mips uint32) error {
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    colorRange(0, mips),
	}

	var srcStage, dstStage vulkan.PipelineStageFlagBits
	switch {
	case oldLayout == vulkan.ImageLayoutUndefined && newLayout == vulkan.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
		srcStage = vulkan.PipelineStageTopOfPipeBit
		dstStage = vulkan.PipelineStageTransferBit
	case oldLayout == vulkan.ImageLayoutTransferDstOptimal && newLayout == vulkan.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
		barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessShaderReadBit)
		srcStage = vulkan.PipelineStageTransferBit
		dstStage = vulkan.PipelineStageFragmentShaderBit
	default:
		return fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	return r.oneShot(func(cb vulkan.CommandBuffer) {
		vulkan.CmdPipelineBarrier(cb,
			vulkan.PipelineStageFlags(srcStage), vulkan.PipelineStageFlags(dstStage),
			0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
	})
}

func (r *Renderer) copyBufferToImage(buf vulkan.Buffer, img vulkan.Image, width, height uint32) error {
	region := vulkan.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vulkan.Offset3D{},
		ImageExtent: vulkan.Extent3D{Width: width, Height: height, Depth: 1},
	}
	return r.oneShot(func(cb vulkan.CommandBuffer) {
		vulkan.CmdCopyBufferToImage(cb, buf, img, vulkan.ImageLayoutTransferDstOptimal, 1, []vulkan.BufferImageCopy{region})
	})
}

// generateMipmaps fills levels 1..mips-1 by successive half-size linear
// blits. Level 0 must hold the image in TRANSFER_DST layout.
func (r *Renderer) generateMipmaps(img vulkan.Image, format vulkan.Format, width, height int32, mips uint32) error {
	props := r.formatProperties(format)
	if props.OptimalTilingFeatures&vulkan.FormatFeatureFlags(vulkan.FormatFeatureSampledImageFilterLinearBit) == 0 {
		return ErrLinearBlitUnsupported
	}

	return r.oneShot(func(cb vulkan.CommandBuffer) {
		barrier := vulkan.ImageMemoryBarrier{
			SType:               vulkan.StructureTypeImageMemoryBarrier,
			SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
			DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
			Image:               img,
		}
		pipelineBarrier := func(src, dst vulkan.PipelineStageFlagBits) {
			vulkan.CmdPipelineBarrier(cb,
				vulkan.PipelineStageFlags(src), vulkan.PipelineStageFlags(dst),
				0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
		}

		mipW, mipH := width, height
		for i := uint32(1); i < mips; i++ {
			barrier.SubresourceRange = colorRange(i-1, 1)
			barrier.OldLayout = vulkan.ImageLayoutTransferDstOptimal
			barrier.NewLayout = vulkan.ImageLayoutTransferSrcOptimal
			barrier.SrcAccessMask = vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
			barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessTransferReadBit)
			pipelineBarrier(vulkan.PipelineStageTransferBit, vulkan.PipelineStageTransferBit)

			nextW, nextH := mesh.MipExtent(mipW), mesh.MipExtent(mipH)
			blit := vulkan.ImageBlit{
				SrcSubresource: vulkan.ImageSubresourceLayers{
					AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
					MipLevel:       i - 1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]vulkan.Offset3D{{}, {X: mipW, Y: mipH, Z: 1}},
				DstSubresource: vulkan.ImageSubresourceLayers{
					AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
					MipLevel:       i,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]vulkan.Offset3D{{}, {X: nextW, Y: nextH, Z: 1}},
			}
			vulkan.CmdBlitImage(cb,
				img, vulkan.ImageLayoutTransferSrcOptimal,
				img, vulkan.ImageLayoutTransferDstOptimal,
				1, []vulkan.ImageBlit{blit}, vulkan.FilterLinear)

			barrier.OldLayout = vulkan.ImageLayoutTransferSrcOptimal
			barrier.NewLayout = vulkan.ImageLayoutShaderReadOnlyOptimal
			barrier.SrcAccessMask = vulkan.AccessFlags(vulkan.AccessTransferReadBit)
			barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessShaderReadBit)
			pipelineBarrier(vulkan.PipelineStageTransferBit, vulkan.PipelineStageFragmentShaderBit)

			mipW, mipH = nextW, nextH
		}

		barrier.SubresourceRange = colorRange(mips-1, 1)
		barrier.OldLayout = vulkan.ImageLayoutTransferDstOptimal
		barrier.NewLayout = vulkan.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
		barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessShaderReadBit)
		pipelineBarrier(vulkan.PipelineStageTransferBit, vulkan.PipelineStageFragmentShaderBit)
	})
}

func (r *Renderer) createTextureSampler() error {
	samplerInfo := vulkan.SamplerCreateInfo{
		SType:                   vulkan.StructureTypeSamplerCreateInfo,
		MagFilter:               vulkan.FilterLinear,
		MinFilter:               vulkan.FilterLinear,
		AddressModeU:            vulkan.SamplerAddressModeRepeat,
		AddressModeV:            vulkan.SamplerAddressModeRepeat,
		AddressModeW:            vulkan.SamplerAddressModeRepeat,
		AnisotropyEnable:        vulkan.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vulkan.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vulkan.False,
		CompareEnable:           vulkan.False,
		CompareOp:               vulkan.CompareOpAlways,
		MipmapMode:              vulkan.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  r.cfg.Render.MaxLod,
	}
	if r.anisotropy {
		samplerInfo.AnisotropyEnable = vulkan.True
		samplerInfo.MaxAnisotropy = r.maxAnisotropy
	}
	if res := vulkan.CreateSampler(r.device, &samplerInfo, nil, &r.sampler); res != vulkan.Success {
		return fmt.Errorf("create sampler: %w", vulkan.Error(res))
	}
	return nil
}
