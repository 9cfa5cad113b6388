package vkscene

import (
	"os"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// LockMode selects how the texture cache serializes misses.
type LockMode string

const (
	// LockCoarse holds one mutex across lookup, upload and insert.
	LockCoarse LockMode = "coarse"
	// LockKeyed lets uploads of different paths run in parallel.
	LockKeyed LockMode = "keyed"
)

// Config carries the loader's tunables. The zero value is not usable, start
// from DefaultConfig.
type Config struct {
	Name string `toml:"name"`
	// PostProcess names the scene steps run by the importer.
	PostProcess []string `toml:"post_process"`
	// TextureTypes lists the material slots that are loaded. Others are ignored.
	TextureTypes []string `toml:"texture_types"`
	LockMode     LockMode `toml:"lock_mode"`
	// Workers bounds concurrent texture loads within one scene.
	Workers int `toml:"workers"`
	// StageGeometry places vertex and index data in device-local memory
	// through a staging copy. Otherwise buffers stay host visible.
	StageGeometry bool    `toml:"stage_geometry"`
	SamplerMaxLod float32 `toml:"sampler_max_lod"`
	LogDir        string  `toml:"log_dir"`
	Validation    bool    `toml:"validation"`
}

func DefaultConfig() Config {
	return Config{
		Name: "vkscene",
		PostProcess: []string{
			"triangulate",
			"flip_uvs",
			"calc_tangent_space",
			"join_identical_vertices",
			"optimize_meshes",
		},
		TextureTypes: []string{
			scene.TextureDiffuse.String(),
			scene.TextureNormal.String(),
			scene.TextureSpecular.String(),
			scene.TextureEmissive.String(),
			scene.TextureOcclusion.String(),
		},
		LockMode:      LockCoarse,
		Workers:       4,
		StageGeometry: true,
		SamplerMaxLod: 1,
	}
}

// LoadConfig reads a TOML file over DefaultConfig. Keys absent from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err = toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown step, texture type and lock mode names.
func (c Config) Validate() error {
	if _, err := c.Steps(); err != nil {
		return err
	}
	if _, err := c.Types(); err != nil {
		return err
	}
	switch c.LockMode {
	case LockCoarse, LockKeyed:
	default:
		return errors.Newf("unknown lock mode %q", c.LockMode)
	}
	if c.Workers < 1 {
		return errors.Newf("workers must be positive, got %d", c.Workers)
	}
	if c.SamplerMaxLod < 0 {
		return errors.Newf("negative sampler max lod %g", c.SamplerMaxLod)
	}
	return nil
}

// Steps parses PostProcess.
func (c Config) Steps() (scene.PostProcess, error) {
	return scene.ParsePostProcess(c.PostProcess)
}

// Types parses TextureTypes, preserving order and dropping duplicates.
func (c Config) Types() ([]scene.TextureType, error) {
	seen := make(map[scene.TextureType]bool, len(c.TextureTypes))
	var types []scene.TextureType
	for _, name := range c.TextureTypes {
		t, err := scene.ParseTextureType(name)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types, nil
}

// Marshal encodes c as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
