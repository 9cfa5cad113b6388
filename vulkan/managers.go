package vulkan

import (
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// fenceManager recycles the fences used to wait for one-shot submissions.
type fenceManager struct {
	device vk.Device

	mu   sync.Mutex
	free []vk.Fence
	all  []vk.Fence
}

func newFenceManager(device vk.Device) *fenceManager {
	return &fenceManager{device: device}
}

// get returns an unsignaled fence, creating one if none is free.
func (f *fenceManager) get() (vk.Fence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := len(f.free); n > 0 {
		fence := f.free[n-1]
		f.free = f.free[:n-1]
		return fence, nil
	}
	var fence vk.Fence
	ret := vk.CreateFence(f.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence)
	if isError(ret) {
		return nil, newError(ret)
	}
	f.all = append(f.all, fence)
	return fence, nil
}

// put resets fence and makes it available again.
func (f *fenceManager) put(fence vk.Fence) error {
	if err := newError(vk.ResetFences(f.device, 1, []vk.Fence{fence})); err != nil {
		return err
	}
	f.mu.Lock()
	f.free = append(f.free, fence)
	f.mu.Unlock()
	return nil
}

func (f *fenceManager) destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fence := range f.all {
		vk.DestroyFence(f.device, fence, nil)
	}
	f.all, f.free = nil, nil
}
