package parbatch

import (
	"github.com/bmizerany/assert"
	"testing"
)

func intItems(n int) []interface{} {
	items := make([]interface{}, n)
	for i := 0; i < n; i++ {
		items[i] = i
	}
	return items
}

func TestPlanChunks_Balanced(t *testing.T) {
	chunks := planChunks(intItems(17), 5)
	assert.Equal(t, 5, len(chunks))
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = c.Range.Len()
		assert.Equal(t, len(c.Items), c.Range.Len())
	}
	assert.Equal(t, []int{4, 4, 3, 3, 3}, sizes)
	assert.Equal(t, IndexRange{Start: 0, End: 4}, chunks[0].Range)
	assert.Equal(t, IndexRange{Start: 14, End: 17}, chunks[4].Range)
}

func TestPlanChunks_Partition(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for k := 1; k <= 10; k++ {
			chunks := planChunks(intItems(n), k)
			pos := 0
			for _, c := range chunks {
				assert.Equal(t, pos, c.Range.Start)
				assert.T(t, c.Range.End > c.Range.Start)
				for j, item := range c.Items {
					assert.Equal(t, c.Range.Start+j, item)
				}
				pos = c.Range.End
			}
			assert.Equal(t, n, pos)
		}
	}
}

func TestPlanChunks_CountCappedAtItems(t *testing.T) {
	chunks := planChunks(intItems(3), 5)
	assert.Equal(t, 3, len(chunks))
	for _, c := range chunks {
		assert.Equal(t, 1, c.Range.Len())
	}
}

func TestPlanChunks_Empty(t *testing.T) {
	assert.Equal(t, 0, len(planChunks(nil, 4)))
	assert.Equal(t, 0, len(planChunks([]interface{}{}, 4)))
}

func TestNormalizeItems(t *testing.T) {
	items, ok := normalizeItems([]string{"a", "b"})
	assert.T(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, items)

	items, ok = normalizeItems([]interface{}{1, 2})
	assert.T(t, ok)
	assert.Equal(t, 2, len(items))

	_, ok = normalizeItems(42)
	assert.T(t, !ok)

	_, ok = normalizeItems(nil)
	assert.T(t, !ok)
}
