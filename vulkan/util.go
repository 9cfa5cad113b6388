package vulkan

import vk "github.com/vulkan-go/vulkan"

// nameSet holds null-terminated names reported by the loader.
type nameSet map[string]bool

// instanceExtensions lists the instance extensions the loader offers.
func instanceExtensions() (nameSet, error) {
	var count uint32
	if err := newError(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := newError(vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, err
	}
	set := make(nameSet, count)
	for _, p := range props[:count] {
		p.Deref()
		set.add(vk.ToString(p.ExtensionName[:]))
	}
	return set, nil
}

// instanceLayers lists the instance layers installed on the host.
func instanceLayers() (nameSet, error) {
	var count uint32
	if err := newError(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, count)
	if err := newError(vk.EnumerateInstanceLayerProperties(&count, props)); err != nil {
		return nil, err
	}
	set := make(nameSet, count)
	for _, p := range props[:count] {
		p.Deref()
		set.add(vk.ToString(p.LayerName[:]))
	}
	return set, nil
}

func (s nameSet) add(name string) { s[safeString(name)] = true }

// filter returns the wanted names present in s, null-terminated for the C
// side, and the number missing.
func (s nameSet) filter(wanted []string) (present []string, missing int) {
	for _, name := range wanted {
		name = safeString(name)
		if s[name] {
			present = append(present, name)
		} else {
			missing++
		}
	}
	return present, missing
}

// safeString null-terminates s for the C side.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}
