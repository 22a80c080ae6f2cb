package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

type orderList []metadata.RenderPassEvent

func (o orderList) Len() int {
	return len(o)
}

func (o orderList) Order(i int) metadata.RenderPassEvent {
	return o[i]
}

func blockLengths(ranges BlockRanges) [RENDER_PASS_BLOCK_COUNT]int {
	var lengths [RENDER_PASS_BLOCK_COUNT]int
	for block := RENDER_PASS_BLOCK_BEFORE_RENDERING; block < RENDER_PASS_BLOCK_COUNT; block++ {
		lengths[block] = ranges.Range(block).Len()
	}
	return lengths
}

func TestPartitionBlocks(t *testing.T) {
	tests := []struct {
		name   string
		orders orderList
		want   [RENDER_PASS_BLOCK_COUNT]int
	}{
		{
			name:   "empty",
			orders: orderList{},
			want:   [RENDER_PASS_BLOCK_COUNT]int{0, 0, 0, 0},
		},
		{
			name:   "one per block",
			orders: orderList{50, 250, 450, 700},
			want:   [RENDER_PASS_BLOCK_COUNT]int{1, 1, 1, 1},
		},
		{
			name:   "all before rendering",
			orders: orderList{0, 50, 100, 149},
			want:   [RENDER_PASS_BLOCK_COUNT]int{4, 0, 0, 0},
		},
		{
			name:   "all after rendering",
			orders: orderList{600, 1000, 1000},
			want:   [RENDER_PASS_BLOCK_COUNT]int{0, 0, 0, 3},
		},
		{
			// 300 is the transparent threshold and so opens that block, even though
			// a key of exactly 300 is sometimes described as the last opaque key
			name:   "empty opaque block",
			orders: orderList{100, 100, 300, 500},
			want:   [RENDER_PASS_BLOCK_COUNT]int{2, 0, 2, 0},
		},
		{
			name:   "negative keys",
			orders: orderList{-10, 150},
			want:   [RENDER_PASS_BLOCK_COUNT]int{1, 1, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges := PartitionBlocks(tt.orders, DefaultBlockThresholds)
			assert.Equal(t, tt.want, blockLengths(ranges))
			assert.Equal(t, 0, ranges.Range(RENDER_PASS_BLOCK_BEFORE_RENDERING).Start)
			assert.Equal(t, tt.orders.Len(), ranges.Range(RENDER_PASS_BLOCK_AFTER_RENDERING).End)
		})
	}
}

func TestPartitionBoundaryKeyStartsNextBlock(t *testing.T) {
	orders := orderList{149, 150, 299, 300, 599, 600}

	ranges := PartitionBlocks(orders, DefaultBlockThresholds)

	assert.Equal(t, BlockRange{Start: 0, End: 1}, ranges.Range(RENDER_PASS_BLOCK_BEFORE_RENDERING))
	assert.Equal(t, BlockRange{Start: 1, End: 3}, ranges.Range(RENDER_PASS_BLOCK_MAIN_RENDERING_OPAQUE))
	assert.Equal(t, BlockRange{Start: 3, End: 5}, ranges.Range(RENDER_PASS_BLOCK_MAIN_RENDERING_TRANSPARENT))
	assert.Equal(t, BlockRange{Start: 5, End: 6}, ranges.Range(RENDER_PASS_BLOCK_AFTER_RENDERING))
}

func TestPartitionBlocksOverSortedQueue(t *testing.T) {
	pq := NewPassQueue(4)
	for i, order := range []metadata.RenderPassEvent{500, 100, 100, 300} {
		require.NoError(t, pq.Enqueue(newStubPass([]string{"p1", "p2", "p3", "p4"}[i], cameraDesc(order, 0), nil)))
	}
	pq.Sort()

	ranges := PartitionBlocks(pq, DefaultBlockThresholds)

	pre := ranges.Range(RENDER_PASS_BLOCK_BEFORE_RENDERING)
	require.Equal(t, 2, pre.Len())
	assert.Equal(t, "p2", pq.At(pre.Start).Name())
	assert.Equal(t, "p3", pq.At(pre.Start+1).Name())

	transparent := ranges.Range(RENDER_PASS_BLOCK_MAIN_RENDERING_TRANSPARENT)
	require.Equal(t, 2, transparent.Len())
	assert.Equal(t, "p4", pq.At(transparent.Start).Name())
	assert.Equal(t, "p1", pq.At(transparent.Start+1).Name())
}

func TestPartitionBlocksCustomThresholds(t *testing.T) {
	thresholds := BlockThresholds{200, 400, 800}
	require.NoError(t, thresholds.Validate())

	ranges := PartitionBlocks(orderList{100, 250, 500, 700, 900}, thresholds)

	assert.Equal(t, [RENDER_PASS_BLOCK_COUNT]int{1, 1, 2, 1}, blockLengths(ranges))
}

func TestBlockThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultBlockThresholds.Validate())
	assert.Equal(t, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_PREPASSES, DefaultBlockThresholds.OpaqueStart())

	assert.ErrorIs(t, BlockThresholds{150, 150, 600}.Validate(), core.ErrInvalidThresholds)
	assert.ErrorIs(t, BlockThresholds{600, 300, 150}.Validate(), core.ErrInvalidThresholds)
}

func TestRenderPassBlockString(t *testing.T) {
	assert.Equal(t, "MainRenderingOpaque", RENDER_PASS_BLOCK_MAIN_RENDERING_OPAQUE.String())
	assert.Equal(t, "RenderPassBlock(7)", RenderPassBlock(7).String())
}
