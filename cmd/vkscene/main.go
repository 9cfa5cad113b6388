// Command vkscene imports model files and uploads their geometry and
// textures to the first Vulkan GPU it finds.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/andewx/vkscene"
	"github.com/andewx/vkscene/imagedec"
	"github.com/andewx/vkscene/importer"
	vkb "github.com/andewx/vkscene/vulkan"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"
	vk "github.com/vulkan-go/vulkan"
)

type options struct {
	config     string
	workers    int
	lockMode   string
	decoder    string
	validation bool
	logDir     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:          "vkscene",
		Short:        "Load 3D scenes into GPU memory",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.config, "config", "", "TOML configuration file")
	pf.IntVar(&opts.workers, "workers", 0, "concurrent texture loads per scene")
	pf.StringVar(&opts.lockMode, "lock-mode", "", "texture cache locking: coarse or keyed")
	pf.StringVar(&opts.decoder, "decoder", "go", "image decoder: go or stbi")
	pf.BoolVar(&opts.validation, "validation", false, "enable the Khronos validation layer")
	pf.StringVar(&opts.logDir, "log-dir", "", "write info, warning and error logs to this directory")

	root.AddCommand(&cobra.Command{
		Use:   "load <model>...",
		Short: "Import models and upload them to the GPU",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, &opts, args)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "inspect <model>",
		Short: "Import a model and print its post-processed scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, &opts, args[0])
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return root
}

// load reads the config file, if any, and applies flag overrides.
func (o *options) load() (vkscene.Config, error) {
	cfg := vkscene.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = vkscene.LoadConfig(o.config); err != nil {
			return cfg, err
		}
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.lockMode != "" {
		cfg.LockMode = vkscene.LockMode(o.lockMode)
	}
	if o.validation {
		cfg.Validation = true
	}
	if o.logDir != "" {
		cfg.LogDir = o.logDir
	}
	return cfg, cfg.Validate()
}

func (o *options) imageDecoder() (vkscene.ImageDecoder, error) {
	switch o.decoder {
	case "", "go":
		return vkscene.StdDecoder{}, nil
	case "stbi":
		return imagedec.STBI{}, nil
	}
	return nil, errors.Newf("unknown decoder %q", o.decoder)
}

func newLogger(cfg vkscene.Config) (*vkscene.Logger, error) {
	if cfg.LogDir == "" {
		return vkscene.NewLogger(os.Stderr), nil
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	return vkscene.NewFileLogger(cfg.LogDir)
}

// Loader entry points, replaced in tests.
var (
	glfwInit        = glfw.Init
	defaultProcAddr = vk.SetDefaultGetInstanceProcAddr
	vkInit          = vk.Init
)

// initVulkan resolves the Vulkan loader through glfw, or straight from the
// system library when glfw cannot start, for example without a display. The
// returned func must be called when done, even on error.
func initVulkan(log *vkscene.Logger) (func(), error) {
	terminate := func() {}
	if err := glfwInit(); err == nil {
		terminate = glfw.Terminate
		vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	} else {
		log.Warnf("glfw unavailable, loading the Vulkan library directly: %v", err)
		if err = defaultProcAddr(); err != nil {
			return terminate, errors.Wrap(err, "load vulkan library")
		}
	}
	if err := vkInit(); err != nil {
		return terminate, errors.Wrap(err, "vulkan init")
	}
	return terminate, nil
}

func runLoad(cmd *cobra.Command, opts *options, paths []string) (err error) {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	steps, err := cfg.Steps()
	if err != nil {
		return err
	}
	dec, err := opts.imageDecoder()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	terminate, err := initVulkan(log)
	defer terminate()
	if err != nil {
		return err
	}

	platform, err := vkb.NewPlatform(vkb.PlatformConfig{
		AppName:    cfg.Name,
		Validation: cfg.Validation,
		Log:        log,
	})
	if err != nil {
		return err
	}
	defer platform.Destroy()
	ctx := platform.Context()
	defer ctx.Destroy()

	loader := vkscene.NewModelLoader(ctx,
		vkscene.WithConfig(cfg),
		vkscene.WithLogger(log),
		vkscene.WithImporter(importer.New(steps)),
		vkscene.WithDecoder(dec),
	)
	defer func() {
		err = errors.CombineErrors(err, loader.Release())
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "device: %s\n", platform.DeviceName())
	for _, path := range paths {
		model, err := loader.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d meshes\n", model.Path, len(model.Meshes))
	}
	st := loader.Stats()
	fmt.Fprintf(out, "models %d, meshes %d, buffers %d, textures %d, uploads %d\n",
		st.Models, st.Meshes, st.Buffers, st.Textures, st.Uploads)
	for _, tex := range loader.Textures() {
		fmt.Fprintf(out, "  %s %s %dx%d\n", tex.Type, tex.Path, tex.Width, tex.Height)
	}
	return nil
}

func runInspect(cmd *cobra.Command, opts *options, path string) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	steps, err := cfg.Steps()
	if err != nil {
		return err
	}
	s, err := importer.New(steps).Import(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (post-process: %s)\n", path, steps)
	for i, m := range s.Meshes {
		mat := "none"
		if mm := s.Material(m); mm != nil {
			mat = mm.Name
		}
		fmt.Fprintf(out, "mesh %d %q: %d vertices, %d faces, material %s, tangents %t\n",
			i, m.Name, len(m.Positions), len(m.Faces), mat, m.HasTangents())
	}
	for i, mat := range s.Materials {
		fmt.Fprintf(out, "material %d %q\n", i, mat.Name)
		for _, ref := range mat.Textures {
			fmt.Fprintf(out, "  %s %s\n", ref.Type, ref.Path)
		}
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}
