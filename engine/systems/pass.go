package systems

import (
	"reflect"

	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

/**
 * @brief One unit of per-frame rendering work. The scheduler calls, in order:
 * Configure, ResolveAttachments, Execute for every frame the pass is enqueued in,
 * and Cleanup once the frame is done.
 */
type Pass interface {
	Name() string
	/**
	 * @brief Called right before the pass executes. The pass may reshape its own
	 * declared targets, e.g. to follow the frame size.
	 */
	Configure(frame *metadata.FrameDescriptor)
	/** @brief Returns what the pass wants bound and cleared. Order must not change within a frame. */
	ResolveAttachments() metadata.PassDescriptor
	/** @brief Issues the pass' own commands. ctx is only valid during the call. */
	Execute(ctx *PassContext) error
	Cleanup()
}

// Feature contributes passes to a camera's frame. Returned nil entries are dropped.
type Feature interface {
	Name() string
	AddRenderPasses(frame *metadata.FrameDescriptor) []Pass
}

// BlockObserver gets notified around each block, e.g. to set up lighting once
// before the opaque block. Empty blocks are notified too.
type BlockObserver interface {
	BeginBlock(block RenderPassBlock, frame *metadata.FrameDescriptor)
	EndBlock(block RenderPassBlock, frame *metadata.FrameDescriptor)
}

// isNilPass catches both nil interfaces and typed nil pointers handed out by
// misbehaving features.
func isNilPass(p Pass) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
