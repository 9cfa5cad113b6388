package vkscene

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/andewx/vkscene/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReleaseOrder(t *testing.T) {
	dev := newFakeDevice()
	u := newTestUploader(dev, newFakeDecoder("a.png"))
	r := NewRegistry(nil)

	tex, err := u.Upload("a.png", scene.TextureDiffuse)
	require.NoError(t, err)
	require.NoError(t, r.TrackTexture(tex))
	buf, err := u.alloc.AllocateBuffer(32, BufferUsageVertex, MemoryPropertyHostVisible)
	require.NoError(t, err)
	r.TrackBuffer(buf)

	textures, buffers := r.Counts()
	assert.Equal(t, 1, textures)
	assert.Equal(t, 1, buffers)

	sampler, view, image, mem := tex.Sampler, tex.View, tex.Image, tex.Memory
	b, bmem := buf.Buffer, buf.Memory
	before := len(dev.callsMatching("Destroy", "Free"))

	require.NoError(t, r.Release())
	calls := dev.callsMatching("Destroy", "Free")[before:]
	assert.Equal(t, []string{
		fmtCall("DestroySampler", uint64(sampler)),
		fmtCall("DestroyImageView", uint64(view)),
		fmtCall("DestroyImage", uint64(image)),
		fmtCall("FreeMemory", uint64(mem)),
		fmtCall("DestroyBuffer", uint64(b)),
		fmtCall("FreeMemory", uint64(bmem)),
	}, calls)
	assert.Zero(t, dev.liveCount(""))

	// Idempotent.
	require.NoError(t, r.Release())
	assert.Len(t, dev.callsMatching("Destroy", "Free"), before+6)
	textures, buffers = r.Counts()
	assert.Zero(t, textures+buffers)
}

func TestRegistryRejectsIncompleteTexture(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.TrackTexture(&Texture{Image: 1, Memory: 2, View: 3}))
	assert.Error(t, r.TrackTexture(nil))
	textures, _ := r.Counts()
	assert.Zero(t, textures)
}

func TestRegistryReleaseContinuesAfterFailure(t *testing.T) {
	dev := newFakeDevice()
	u := newTestUploader(dev, newFakeDecoder("a.png", "b.png"))
	var logs bytes.Buffer
	r := NewRegistry(NewLogger(&logs))

	for _, p := range []string{"a.png", "b.png"} {
		tex, err := u.Upload(p, scene.TextureDiffuse)
		require.NoError(t, err)
		require.NoError(t, r.TrackTexture(tex))
	}
	dev.failOn("DestroyImageView", 1)
	samplers, images, frees := dev.count("DestroySampler"), dev.count("DestroyImage"), dev.count("FreeMemory")

	err := r.Release()
	require.Error(t, err)
	assert.Contains(t, logs.String(), "ERROR: ")
	assert.Contains(t, logs.String(), "a.png")
	// Everything except the view that failed to be destroyed is gone.
	assert.Equal(t, 1, dev.liveCount(""))
	assert.Equal(t, 1, dev.liveCount("view"))
	assert.Equal(t, 2, dev.count("DestroySampler")-samplers)
	assert.Equal(t, 2, dev.count("DestroyImage")-images)
	assert.Equal(t, 2, dev.count("FreeMemory")-frees)

	require.NoError(t, r.Release())
}

func TestRegistryUntrack(t *testing.T) {
	dev := newFakeDevice()
	r := NewRegistry(nil)
	buf, err := NewAllocator(dev).AllocateBuffer(8, BufferUsageIndex, MemoryPropertyHostVisible)
	require.NoError(t, err)
	r.TrackBuffer(buf)

	ok, err := r.Untrack(buf)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, dev.liveCount(""))

	ok, err = r.Untrack(buf)
	require.NoError(t, err)
	assert.False(t, ok)
}

func fmtCall(method string, h uint64) string {
	return method + "(" + strconv.FormatUint(h, 10) + ")"
}
