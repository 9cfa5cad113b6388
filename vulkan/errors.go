package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// newError converts a failed vk.Result into an error with a stack trace. It
// returns nil for vk.Success.
func newError(ret vk.Result) error {
	if !isError(ret) {
		return nil
	}
	return errors.Wrapf(vk.Error(ret), "vulkan error (%d)", int32(ret))
}
