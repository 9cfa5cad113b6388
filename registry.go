package vkscene

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Registry owns every persistent GPU object the loader creates and destroys
// them on Release.
type Registry struct {
	log *Logger

	mu       sync.Mutex
	textures []*Texture
	buffers  []*BufferResource
}

func NewRegistry(log *Logger) *Registry {
	if log == nil {
		log = DiscardLogger()
	}
	return &Registry{log: log}
}

// TrackTexture takes ownership of a fully built texture.
func (r *Registry) TrackTexture(tex *Texture) error {
	if !tex.Valid() {
		return errors.AssertionFailedf("registering incomplete texture")
	}
	r.mu.Lock()
	r.textures = append(r.textures, tex)
	r.mu.Unlock()
	return nil
}

// TrackBuffer takes ownership of a vertex, index or other persistent buffer.
func (r *Registry) TrackBuffer(buf *BufferResource) {
	r.mu.Lock()
	r.buffers = append(r.buffers, buf)
	r.mu.Unlock()
}

// Untrack releases buf and forgets it. It reports whether buf was tracked.
func (r *Registry) Untrack(buf *BufferResource) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.buffers {
		if b == buf {
			r.buffers = append(r.buffers[:i], r.buffers[i+1:]...)
			return true, buf.Release()
		}
	}
	return false, nil
}

// Counts returns the number of tracked textures and buffers.
func (r *Registry) Counts() (textures, buffers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.textures), len(r.buffers)
}

// Release destroys everything tracked: for each texture sampler, view, image
// and memory; for each buffer the buffer and then its memory. Failures are
// logged and teardown continues. A second call finds nothing to destroy.
// Callers must not upload concurrently with Release.
func (r *Registry) Release() error {
	r.mu.Lock()
	textures, buffers := r.textures, r.buffers
	r.textures, r.buffers = nil, nil
	r.mu.Unlock()

	var err error
	for _, tex := range textures {
		if e := tex.Release(); e != nil {
			r.log.Errorf("releasing texture %s: %v", tex.Path, e)
			err = errors.CombineErrors(err, e)
		}
	}
	for _, buf := range buffers {
		if e := buf.Release(); e != nil {
			r.log.Errorf("releasing buffer: %v", e)
			err = errors.CombineErrors(err, e)
		}
	}
	if len(textures)+len(buffers) > 0 {
		r.log.Infof("released %d textures and %d buffers", len(textures), len(buffers))
	}
	return err
}
