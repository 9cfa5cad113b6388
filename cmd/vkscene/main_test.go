package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/andewx/vkscene"
	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vkscene.toml")
	require.NoError(t, os.WriteFile(path, []byte("workers = 2\npost_process = [\"triangulate\"]\n"), 0644))

	out, err := run(t, "config", "--config", path, "--lock-mode", "keyed")
	require.NoError(t, err)

	var cfg vkscene.Config
	require.NoError(t, toml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, vkscene.LockKeyed, cfg.LockMode)
	assert.Equal(t, []string{"triangulate"}, cfg.PostProcess)
}

func TestConfigRejectsBadFlags(t *testing.T) {
	_, err := run(t, "config", "--lock-mode", "global")
	assert.Error(t, err)

	opts := options{decoder: "png"}
	_, err = opts.imageDecoder()
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	obj := "mtllib m.mtl\no tri\nusemtl red\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nvn 0 0 1\nf 1/1/1 2/2/1 3/3/1\n"
	mtl := "newmtl red\nKd 1 0 0\nmap_Kd red.png\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.obj"), []byte(obj), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.mtl"), []byte(mtl), 0644))

	out, err := run(t, "inspect", filepath.Join(dir, "m.obj"))
	require.NoError(t, err)
	assert.Contains(t, out, `mesh 0 "tri": 3 vertices, 1 faces, material red, tangents true`)
	assert.Contains(t, out, filepath.Join(dir, "red.png"))
	assert.Contains(t, out, "texture_diffuse")
}

func TestInspectUnsupported(t *testing.T) {
	_, err := run(t, "inspect", "model.fbx")
	assert.Error(t, err)
}

func TestInitVulkanWithoutDisplay(t *testing.T) {
	defer func(g, d, v func() error) { glfwInit, defaultProcAddr, vkInit = g, d, v }(glfwInit, defaultProcAddr, vkInit)

	var calls []string
	glfwInit = func() error {
		calls = append(calls, "glfw")
		return errors.New("X11: The DISPLAY environment variable is missing")
	}
	defaultProcAddr = func() error {
		calls = append(calls, "default")
		return nil
	}
	vkInit = func() error {
		calls = append(calls, "vk")
		return nil
	}

	var logs bytes.Buffer
	terminate, err := initVulkan(vkscene.NewLogger(&logs))
	require.NoError(t, err)
	terminate()
	assert.Equal(t, []string{"glfw", "default", "vk"}, calls)
	assert.Contains(t, logs.String(), "WARNING: ")

	calls = nil
	defaultProcAddr = func() error { return errors.New("libvulkan.so.1: not found") }
	_, err = initVulkan(vkscene.NewLogger(&logs))
	assert.Error(t, err)
	assert.Equal(t, []string{"glfw"}, calls)
}
