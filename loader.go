// Package vkscene imports 3D scenes into GPU-resident geometry and textures.
//
// Textures are deduplicated by source path across every mesh and material a
// loader sees, uploaded through a host-visible staging buffer into
// device-local images, and destroyed exactly once when the loader is
// released. Vertex and index data are uploaded per mesh.
package vkscene

import (
	"path/filepath"
	"sync"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// SceneImporter parses a model file into a post-processed scene.
type SceneImporter interface {
	Import(path string) (*scene.Scene, error)
}

// MaterialTexture binds a texture under the semantic its material asked
// for, which may differ from the type the texture was first loaded with.
type MaterialTexture struct {
	Type    scene.TextureType
	Texture *Texture
}

type Mesh struct {
	Name     string
	Vertices *GeometryBuffer
	Indices  *GeometryBuffer
	Textures []MaterialTexture
}

// Model is the GPU side of one imported scene. Meshes are in depth-first
// node order; a mesh referenced by several nodes appears once per reference
// and shares its buffers.
type Model struct {
	Path   string
	Meshes []*Mesh
}

type Stats struct {
	Models   int
	Meshes   int
	Buffers  int
	Textures int
	Uploads  int
}

type Option func(*ModelLoader)

func WithConfig(cfg Config) Option {
	return func(l *ModelLoader) { l.cfg = cfg }
}

func WithLogger(log *Logger) Option {
	return func(l *ModelLoader) { l.log = log }
}

func WithImporter(imp SceneImporter) Option {
	return func(l *ModelLoader) { l.importer = imp }
}

func WithDecoder(dec ImageDecoder) Option {
	return func(l *ModelLoader) { l.decoder = dec }
}

// ModelLoader drives scene traversal, texture caching and geometry upload
// against one DeviceContext. It is safe for concurrent use, except that
// Release must not run concurrently with a load.
type ModelLoader struct {
	cfg      Config
	log      *Logger
	importer SceneImporter
	decoder  ImageDecoder
	types    []scene.TextureType

	ctx      DeviceContext
	alloc    *Allocator
	uploader *Uploader
	geometry *geometryUploader
	cache    *TextureCache
	registry *Registry

	mu     sync.Mutex
	models []*Model
}

// NewModelLoader builds a loader over ctx. An invalid configuration is
// logged and replaced by DefaultConfig.
func NewModelLoader(ctx DeviceContext, opts ...Option) *ModelLoader {
	l := &ModelLoader{
		cfg: DefaultConfig(),
		ctx: ctx,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = DiscardLogger()
	}
	if err := l.cfg.Validate(); err != nil {
		l.log.Warnf("invalid configuration, using defaults: %v", err)
		l.cfg = DefaultConfig()
	}
	l.types, _ = l.cfg.Types()

	l.alloc = NewAllocator(ctx)
	l.uploader = NewUploader(ctx, l.alloc, l.decoder, DefaultSamplerInfo(l.cfg.SamplerMaxLod))
	l.geometry = &geometryUploader{ctx: ctx, alloc: l.alloc, stage: l.cfg.StageGeometry}
	l.registry = NewRegistry(l.log)
	l.cache = NewTextureCache(l.cfg.LockMode, l.loadTexture)
	return l
}

func (l *ModelLoader) Config() Config { return l.cfg }

// Load imports path and uploads the resulting scene.
func (l *ModelLoader) Load(path string) (*Model, error) {
	if l.importer == nil {
		return nil, l.fail(newError(KindSceneLoad, path, errors.New("no scene importer configured")))
	}
	s, err := l.importer.Import(path)
	if err != nil {
		return nil, l.fail(newError(KindSceneLoad, path, err))
	}
	return l.LoadScene(path, s)
}

// LoadScene uploads an already imported scene. Textures that fail to decode
// are logged and their material slot is left empty. An allocation failure
// aborts the load and releases the geometry it created; textures uploaded
// before the failure stay cached.
func (l *ModelLoader) LoadScene(name string, s *scene.Scene) (*Model, error) {
	if s == nil || s.Root == nil {
		return nil, l.fail(newError(KindSceneLoad, name, errors.New("scene has no root node")))
	}
	if s.Incomplete {
		return nil, l.fail(newError(KindSceneLoad, name, errors.New("scene is incomplete")))
	}
	if err := s.Validate(); err != nil {
		return nil, l.fail(newError(KindSceneLoad, name, err))
	}
	for _, w := range s.Warnings {
		l.log.Warnf("%s: %s", name, w)
	}

	order := s.MeshOrder()
	textures, err := l.prefetch(s, order)
	if err != nil {
		return nil, l.fail(withPath(err, name))
	}

	model := &Model{Path: name}
	built := make(map[int]*Mesh, len(order))
	var created []*GeometryBuffer
	rollback := func() {
		for _, gb := range created {
			if _, e := l.registry.Untrack(&gb.BufferResource); e != nil {
				l.log.Errorf("rolling back %s: %v", name, e)
			}
		}
	}
	for _, mi := range order {
		if m, ok := built[mi]; ok {
			model.Meshes = append(model.Meshes, m)
			continue
		}
		sm := s.Meshes[mi]
		if !hasGeometry(sm) {
			l.log.Warnf("%s: mesh %q has no geometry, skipped", name, sm.Name)
			continue
		}
		vb, ib, err := l.geometry.uploadMesh(sm)
		if err != nil {
			rollback()
			return nil, l.fail(withPath(err, name))
		}
		created = append(created, vb, ib)
		l.registry.TrackBuffer(&vb.BufferResource)
		l.registry.TrackBuffer(&ib.BufferResource)
		m := &Mesh{
			Name:     sm.Name,
			Vertices: vb,
			Indices:  ib,
			Textures: l.meshTextures(s, sm, textures),
		}
		built[mi] = m
		model.Meshes = append(model.Meshes, m)
	}

	l.mu.Lock()
	l.models = append(l.models, model)
	l.mu.Unlock()
	l.log.Infof("loaded %s: %d meshes, %d buffers, %d cached textures", name, len(model.Meshes), len(created), l.cache.Len())
	return model, nil
}

func hasGeometry(m *scene.Mesh) bool {
	return len(m.Positions) > 0 && len(m.Faces) > 0
}

type textureRef struct {
	path string
	typ  scene.TextureType
}

// refs lists the enabled texture slots of m's material in type order.
func (l *ModelLoader) refs(s *scene.Scene, m *scene.Mesh) []textureRef {
	mat := s.Material(m)
	if mat == nil {
		return nil
	}
	var refs []textureRef
	for _, typ := range l.types {
		for _, p := range mat.TexturesOf(typ) {
			refs = append(refs, textureRef{path: filepath.Clean(p), typ: typ})
		}
	}
	return refs
}

// prefetch resolves every texture the scene references through the cache,
// at most cfg.Workers at a time. Files are requested in traversal order with
// the semantic of their first reference. Meshes without geometry are never
// built, so their textures are not loaded.
func (l *ModelLoader) prefetch(s *scene.Scene, order []int) (map[string]*Texture, error) {
	var unique []textureRef
	seen := make(map[string]bool)
	for _, mi := range order {
		if !hasGeometry(s.Meshes[mi]) {
			continue
		}
		for _, ref := range l.refs(s, s.Meshes[mi]) {
			if !seen[ref.path] {
				seen[ref.path] = true
				unique = append(unique, ref)
			}
		}
	}

	var mu sync.Mutex
	loaded := make(map[string]*Texture, len(unique))
	var g errgroup.Group
	g.SetLimit(l.cfg.Workers)
	for _, ref := range unique {
		ref := ref
		g.Go(func() error {
			tex, err := l.cache.GetOrLoad(ref.path, ref.typ)
			if IsKind(err, KindTextureLoad) {
				l.log.Warnf("skipping texture %s: %v", ref.path, err)
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			loaded[ref.path] = tex
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loaded, nil
}

func (l *ModelLoader) meshTextures(s *scene.Scene, m *scene.Mesh, loaded map[string]*Texture) []MaterialTexture {
	var out []MaterialTexture
	for _, ref := range l.refs(s, m) {
		if tex, ok := loaded[ref.path]; ok {
			out = append(out, MaterialTexture{Type: ref.typ, Texture: tex})
		}
	}
	return out
}

// loadTexture is the cache's miss path: upload, then hand ownership to the
// registry.
func (l *ModelLoader) loadTexture(path string, typ scene.TextureType) (*Texture, error) {
	tex, err := l.uploader.Upload(path, typ)
	if err != nil {
		return nil, err
	}
	if err = l.registry.TrackTexture(tex); err != nil {
		tex.Release()
		return nil, newError(KindAllocation, path, err)
	}
	l.log.Infof("uploaded %s as %s (%dx%d)", path, typ, tex.Width, tex.Height)
	return tex, nil
}

func (l *ModelLoader) fail(err error) error {
	l.log.Errorf("%v", err)
	return err
}

// Textures returns every cached texture sorted by path.
func (l *ModelLoader) Textures() []*Texture { return l.cache.Entries() }

// Texture looks up a cached texture by path.
func (l *ModelLoader) Texture(path string) (*Texture, bool) {
	return l.cache.Get(filepath.Clean(path))
}

// Models returns the successfully loaded models in load order.
func (l *ModelLoader) Models() []*Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Model(nil), l.models...)
}

func (l *ModelLoader) Stats() Stats {
	l.mu.Lock()
	st := Stats{Models: len(l.models)}
	for _, m := range l.models {
		st.Meshes += len(m.Meshes)
	}
	l.mu.Unlock()
	_, st.Buffers = l.registry.Counts()
	st.Textures = l.cache.Len()
	st.Uploads = l.cache.Uploads()
	return st
}

// Release forgets every model and cached texture and destroys all GPU
// objects the loader created. Calling it again does nothing.
func (l *ModelLoader) Release() error {
	l.cache.Reset()
	l.mu.Lock()
	l.models = nil
	l.mu.Unlock()
	return l.registry.Release()
}
