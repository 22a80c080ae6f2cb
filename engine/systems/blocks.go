package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

/** @brief One of the four fixed partitions of a frame's sorted passes. */
type RenderPassBlock int

const (
	/** @brief Passes before the prepasses, e.g. shadows. They keep whatever is bound. */
	RENDER_PASS_BLOCK_BEFORE_RENDERING RenderPassBlock = iota
	RENDER_PASS_BLOCK_MAIN_RENDERING_OPAQUE
	RENDER_PASS_BLOCK_MAIN_RENDERING_TRANSPARENT
	RENDER_PASS_BLOCK_AFTER_RENDERING
	RENDER_PASS_BLOCK_COUNT
)

func (b RenderPassBlock) String() string {
	switch b {
	case RENDER_PASS_BLOCK_BEFORE_RENDERING:
		return "BeforeRendering"
	case RENDER_PASS_BLOCK_MAIN_RENDERING_OPAQUE:
		return "MainRenderingOpaque"
	case RENDER_PASS_BLOCK_MAIN_RENDERING_TRANSPARENT:
		return "MainRenderingTransparent"
	case RENDER_PASS_BLOCK_AFTER_RENDERING:
		return "AfterRendering"
	default:
		return fmt.Sprintf("RenderPassBlock(%d)", int(b))
	}
}

// BlockThresholds are the keys starting the opaque, transparent and post blocks.
// A pass whose order equals a threshold belongs to the block the threshold starts.
type BlockThresholds [RENDER_PASS_BLOCK_COUNT - 1]metadata.RenderPassEvent

var DefaultBlockThresholds = BlockThresholds{
	metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_PREPASSES,
	metadata.RENDER_PASS_EVENT_AFTER_RENDERING_OPAQUES,
	metadata.RENDER_PASS_EVENT_AFTER_RENDERING_POSTPROCESSING,
}

func (bt BlockThresholds) Validate() error {
	for i := 1; i < len(bt); i++ {
		if bt[i] <= bt[i-1] {
			return fmt.Errorf("%w: %v", core.ErrInvalidThresholds, [len(bt)]metadata.RenderPassEvent(bt))
		}
	}
	return nil
}

// OpaqueStart is the first key of the opaque block.
func (bt BlockThresholds) OpaqueStart() metadata.RenderPassEvent {
	return bt[0]
}

// OrderedSequence is anything exposing sorted order keys by index.
type OrderedSequence interface {
	Len() int
	Order(i int) metadata.RenderPassEvent
}

// BlockRange is a half-open index interval over the sorted queue.
type BlockRange struct {
	Start int
	End   int
}

func (br BlockRange) Len() int {
	return br.End - br.Start
}

// BlockRanges holds the five boundaries (0, b1, b2, b3, N) of the four blocks.
type BlockRanges struct {
	bounds [RENDER_PASS_BLOCK_COUNT + 1]int
}

func (br BlockRanges) Range(block RenderPassBlock) BlockRange {
	return BlockRange{Start: br.bounds[block], End: br.bounds[block+1]}
}

// PartitionBlocks scans the sorted sequence once, recording for each threshold
// the first index whose key is >= the threshold.
func PartitionBlocks(seq OrderedSequence, thresholds BlockThresholds) BlockRanges {
	var ranges BlockRanges
	count := seq.Len()
	cursor := 0
	ranges.bounds[0] = 0
	for i, limit := range thresholds {
		for cursor < count && seq.Order(cursor) < limit {
			cursor++
		}
		ranges.bounds[i+1] = cursor
	}
	ranges.bounds[RENDER_PASS_BLOCK_COUNT] = count
	return ranges
}
