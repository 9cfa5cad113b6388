package vulkan

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/andewx/vkscene"
	"github.com/andewx/vkscene/scene"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// newTestPlatform brings up a device or skips when the machine has no
// Vulkan driver.
func newTestPlatform(t *testing.T) *Platform {
	t.Helper()
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		t.Skipf("glfw: %v", err)
	}
	t.Cleanup(glfw.Terminate)
	if !glfw.VulkanSupported() {
		t.Skip("vulkan loader not found")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		t.Skipf("vk.Init: %v", err)
	}
	p, err := NewPlatform(PlatformConfig{
		AppName: "vkscene-test",
		Log:     vkscene.NewLogger(os.Stderr),
	})
	if err != nil {
		t.Skipf("no usable GPU: %v", err)
	}
	t.Cleanup(p.Destroy)
	return p
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadOnDevice(t *testing.T) {
	p := newTestPlatform(t)
	ctx := p.Context()
	defer ctx.Destroy()

	dir := t.TempDir()
	tex := filepath.Join(dir, "wall.png")
	writePNG(t, tex, 5, 3)

	quad := func(name string) *scene.Mesh {
		return &scene.Mesh{
			Name:          name,
			Positions:     []lin.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
			TexCoords:     []lin.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			Normals:       []lin.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
			Faces:         [][]uint32{{0, 1, 2}, {0, 2, 3}},
			MaterialIndex: -1,
		}
	}
	s := &scene.Scene{
		Root:   &scene.Node{Name: "root", Meshes: []int{0, 1}},
		Meshes: []*scene.Mesh{quad("a"), quad("b")},
		Materials: []*scene.Material{{
			Name:     "wall",
			Textures: []scene.TextureRef{{Type: scene.TextureDiffuse, Path: tex}},
		}},
	}
	s.Meshes[1].MaterialIndex = 0

	for _, mode := range []vkscene.LockMode{vkscene.LockCoarse, vkscene.LockKeyed} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := vkscene.DefaultConfig()
			cfg.LockMode = mode
			l := vkscene.NewModelLoader(ctx, vkscene.WithConfig(cfg))

			model, err := l.LoadScene("quads", s)
			require.NoError(t, err)
			require.Len(t, model.Meshes, 2)
			assert.Empty(t, model.Meshes[0].Textures)
			require.Len(t, model.Meshes[1].Textures, 1)

			got := model.Meshes[1].Textures[0].Texture
			assert.Equal(t, uint32(5), got.Width)
			assert.Equal(t, uint32(3), got.Height)
			assert.Equal(t, 1, l.Stats().Uploads)
			assert.NotZero(t, ctx.Live())

			require.NoError(t, l.Release())
			assert.Zero(t, ctx.Live())
		})
	}
}
