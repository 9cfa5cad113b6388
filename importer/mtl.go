package importer

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/andewx/vkscene/scene"
	"github.com/cockroachdb/errors"
)

// mtlKeys are the texture statements the obj decoder skips. Its own
// map_Kd handling covers diffuse maps.
var mtlKeys = map[string]scene.TextureType{
	"map_ks":   scene.TextureSpecular,
	"norm":     scene.TextureNormal,
	"map_bump": scene.TextureNormal,
	"bump":     scene.TextureNormal,
	"map_ke":   scene.TextureEmissive,
}

// mtlMaps holds the extra maps of one material by statement.
type mtlMaps map[string]string

// refs returns the material's extra texture slots. A "norm" statement wins
// over bump maps for the normal slot.
func (m mtlMaps) refs(dir string) []scene.TextureRef {
	var refs []scene.TextureRef
	add := func(key string) {
		if p, ok := m[key]; ok {
			refs = append(refs, scene.TextureRef{Type: mtlKeys[key], Path: resolve(dir, p)})
		}
	}
	add("map_ks")
	switch {
	case m["norm"] != "":
		add("norm")
	case m["map_bump"] != "":
		add("map_bump")
	default:
		add("bump")
	}
	add("map_ke")
	return refs
}

// readMaterialMaps scans the mtllib files named by the obj at path for the
// statements in mtlKeys, keyed by material name.
func readMaterialMaps(path string) (map[string]mtlMaps, error) {
	libs, err := mtlLibs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	out := make(map[string]mtlMaps)
	for _, lib := range libs {
		if err := parseMTL(resolve(dir, lib), out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mtlLibs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open obj")
	}
	defer f.Close()
	var libs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 1 && fields[0] == "mtllib" {
			libs = append(libs, fields[1:]...)
		}
	}
	return libs, errors.Wrap(sc.Err(), "read obj")
}

// parseMTL adds the maps of one mtl file to out. A missing file is not an
// error; the obj decoder already reports it.
func parseMTL(path string, out map[string]mtlMaps) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "open mtl")
	}
	defer f.Close()

	var current mtlMaps
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.ToLower(fields[0])
		if key == "newmtl" {
			current = make(mtlMaps)
			out[fields[1]] = current
			continue
		}
		if _, ok := mtlKeys[key]; ok && current != nil {
			// Options such as "-bm 1.0" precede the file name.
			current[key] = fields[len(fields)-1]
		}
	}
	return errors.Wrapf(sc.Err(), "read %s", path)
}

// unsupportedWarning reports whether w is the decoder's complaint about a
// statement readMaterialMaps handles.
func unsupportedWarning(w string) bool {
	if !strings.Contains(w, "not supported") {
		return false
	}
	for _, f := range strings.Fields(strings.ToLower(w)) {
		if _, ok := mtlKeys[strings.Trim(f, ":,'\"")]; ok {
			return true
		}
	}
	return false
}
