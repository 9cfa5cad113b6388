package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "a\x00", safeString("a"))
	assert.Equal(t, "a\x00", safeString("a\x00"))
	assert.Equal(t, "\x00", safeString(""))
}

func TestNameSetFilter(t *testing.T) {
	set := make(nameSet)
	set.add("VK_KHR_surface")
	set.add("VK_EXT_debug_report\x00")

	present, missing := set.filter([]string{"VK_EXT_debug_report", "VK_KHR_xcb_surface", "VK_KHR_surface\x00"})
	assert.Equal(t, []string{"VK_EXT_debug_report\x00", "VK_KHR_surface\x00"}, present)
	assert.Equal(t, 1, missing)
}

func TestBarrierMasks(t *testing.T) {
	src, dst, srcStage, dstStage, err := barrierMasks(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	require.NoError(t, err)
	assert.Zero(t, src)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), dst)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), srcStage)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), dstStage)

	src, dst, srcStage, dstStage, err = barrierMasks(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	require.NoError(t, err)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), src)
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit), dst)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), srcStage)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), dstStage)

	_, _, _, _, err = barrierMasks(vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutUndefined)
	assert.Error(t, err)
}

func TestHandleTable(t *testing.T) {
	var next uint64
	a := newTable[uint64, string](&next)
	b := newTable[uint64, int](&next)

	ka := a.add("first")
	kb := b.add(7)
	assert.NotEqual(t, ka, kb, "tables share one counter")
	assert.NotZero(t, ka)

	v, ok := a.get(ka)
	assert.True(t, ok)
	assert.Equal(t, "first", v)
	assert.Equal(t, 1, a.count())

	_, ok = a.remove(ka)
	assert.True(t, ok)
	_, ok = a.remove(ka)
	assert.False(t, ok)
	assert.Zero(t, a.count())
}

func TestNewErrorSuccess(t *testing.T) {
	assert.NoError(t, newError(vk.Success))
	assert.Error(t, newError(vk.ErrorOutOfDeviceMemory))
}
