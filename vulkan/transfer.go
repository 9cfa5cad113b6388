package vulkan

import (
	"context"

	"github.com/andewx/vkscene"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// singleTime records fn into a fresh primary command buffer from the pool,
// submits it to the queue and waits on a fence for completion. Pool and
// queue access is serialized across goroutines.
func (c *Context) singleTime(fn func(cmd vk.CommandBuffer)) (err error) {
	if err = c.submit.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer c.submit.Release(1)

	cmds := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        c.pool,
		CommandBufferCount: 1,
	}, cmds)
	if isError(ret) {
		return errors.Wrap(newError(ret), "allocate command buffer")
	}
	defer vk.FreeCommandBuffers(c.device, c.pool, 1, cmds)

	ret = vk.BeginCommandBuffer(cmds[0], &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isError(ret) {
		return errors.Wrap(newError(ret), "begin command buffer")
	}
	fn(cmds[0])
	if ret = vk.EndCommandBuffer(cmds[0]); isError(ret) {
		return errors.Wrap(newError(ret), "end command buffer")
	}

	fence, err := c.fences.get()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, c.fences.put(fence))
	}()
	ret = vk.QueueSubmit(c.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmds,
	}}, fence)
	if isError(ret) {
		return errors.Wrap(newError(ret), "queue submit")
	}
	ret = vk.WaitForFences(c.device, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64)
	return errors.Wrap(newError(ret), "wait for transfer")
}

// barrierMasks returns access masks and pipeline stages for the two
// transitions an upload performs.
func barrierMasks(from, to vk.ImageLayout) (srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags, err error) {
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		return 0, vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), nil
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), nil
	}
	return 0, 0, 0, 0, errors.Newf("unsupported layout transition %d -> %d", from, to)
}

func (c *Context) TransitionImageLayout(img vkscene.Image, format vkscene.Format, from, to vkscene.ImageLayout) error {
	image, ok := c.images.get(img)
	if !ok {
		return unknown("image", uint64(img))
	}
	oldLayout, newLayout := vk.ImageLayout(from), vk.ImageLayout(to)
	srcAccess, dstAccess, srcStage, dstStage, err := barrierMasks(oldLayout, newLayout)
	if err != nil {
		return err
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
		SrcAccessMask: srcAccess,
		DstAccessMask: dstAccess,
	}
	return c.singleTime(func(cmd vk.CommandBuffer) {
		vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0,
			0, nil,
			0, nil,
			1, []vk.ImageMemoryBarrier{barrier})
	})
}

func (c *Context) CopyBufferToImage(src vkscene.Buffer, dst vkscene.Image, width, height uint32) error {
	buf, ok := c.buffers.get(src)
	if !ok {
		return unknown("buffer", uint64(src))
	}
	image, ok := c.images.get(dst)
	if !ok {
		return unknown("image", uint64(dst))
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	return c.singleTime(func(cmd vk.CommandBuffer) {
		vk.CmdCopyBufferToImage(cmd, buf, image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	})
}

func (c *Context) CopyBuffer(src, dst vkscene.Buffer, size uint64) error {
	s, ok := c.buffers.get(src)
	if !ok {
		return unknown("buffer", uint64(src))
	}
	d, ok := c.buffers.get(dst)
	if !ok {
		return unknown("buffer", uint64(dst))
	}
	return c.singleTime(func(cmd vk.CommandBuffer) {
		vk.CmdCopyBuffer(cmd, s, d, 1, []vk.BufferCopy{{Size: vk.DeviceSize(size)}})
	})
}
