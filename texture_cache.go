package vkscene

import (
	"sort"
	"sync"

	"github.com/andewx/vkscene/scene"
	"golang.org/x/sync/singleflight"
)

// LoadFunc produces a fully built texture for a cache miss. It must either
// return a valid texture or an error with nothing left allocated.
type LoadFunc func(path string, typ scene.TextureType) (*Texture, error)

// TextureCache maps source paths to textures so that each file is uploaded
// at most once, however many materials reference it.
type TextureCache struct {
	mode LockMode
	load LoadFunc

	mu      sync.RWMutex
	entries map[string]*Texture
	uploads int

	// keyed mode only
	group singleflight.Group
}

func NewTextureCache(mode LockMode, load LoadFunc) *TextureCache {
	if mode == "" {
		mode = LockCoarse
	}
	return &TextureCache{
		mode:    mode,
		load:    load,
		entries: make(map[string]*Texture),
	}
}

// GetOrLoad returns the texture for path, loading it on a miss. A hit never
// touches the file, even when typ differs from the cached texture's type.
// Failed loads are not cached and are retried by the next call.
func (c *TextureCache) GetOrLoad(path string, typ scene.TextureType) (*Texture, error) {
	if c.mode == LockKeyed {
		return c.getOrLoadKeyed(path, typ)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex, ok := c.entries[path]; ok {
		return tex, nil
	}
	tex, err := c.load(path, typ)
	if err != nil {
		return nil, err
	}
	c.entries[path] = tex
	c.uploads++
	return tex, nil
}

func (c *TextureCache) getOrLoadKeyed(path string, typ scene.TextureType) (*Texture, error) {
	if tex, ok := c.Get(path); ok {
		return tex, nil
	}
	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		// A previous flight may have finished between Get and Do.
		if tex, ok := c.Get(path); ok {
			return tex, nil
		}
		tex, err := c.load(path, typ)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[path] = tex
		c.uploads++
		c.mu.Unlock()
		return tex, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Texture), nil
}

// Get looks path up without loading.
func (c *TextureCache) Get(path string) (*Texture, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tex, ok := c.entries[path]
	return tex, ok
}

func (c *TextureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Uploads counts successful loads since creation or the last Reset.
func (c *TextureCache) Uploads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uploads
}

// Entries returns the cached textures sorted by path.
func (c *TextureCache) Entries() []*Texture {
	c.mu.RLock()
	out := make([]*Texture, 0, len(c.entries))
	for _, tex := range c.entries {
		out = append(out, tex)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Reset forgets every entry. The textures themselves are owned by the
// registry and are not destroyed here.
func (c *TextureCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*Texture)
	c.uploads = 0
	c.mu.Unlock()
}
