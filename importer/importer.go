// Package importer reads model files into scene graphs.
package importer

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
)

// ErrUnsupported is returned for file extensions no importer handles.
var ErrUnsupported = errors.New("unsupported model format")

// Importer chooses a front-end by file extension and runs the post-process
// steps on its result.
type Importer struct {
	Steps scene.PostProcess
}

func New(steps scene.PostProcess) *Importer {
	return &Importer{Steps: steps}
}

// Import parses path. The returned scene has passed Validate.
func (imp *Importer) Import(path string) (*scene.Scene, error) {
	var (
		s   *scene.Scene
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".obj":
		s, err = importOBJ(path)
	case ".gltf", ".glb":
		s, err = importGLTF(path)
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%q", ext)
	}
	if err != nil {
		return nil, err
	}
	if s.Root == nil {
		return nil, errors.Newf("%s: no scene", path)
	}
	if err = scene.Process(s, imp.Steps); err != nil {
		return nil, errors.Wrapf(err, "post-process %s", path)
	}
	return s, nil
}

// resolve makes a texture reference from a model file usable as a path.
func resolve(dir, ref string) string {
	if u, err := url.PathUnescape(ref); err == nil {
		ref = u
	}
	ref = filepath.FromSlash(strings.ReplaceAll(ref, `\`, "/"))
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(dir, ref)
}
