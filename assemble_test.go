package parbatch

import (
	"github.com/bmizerany/assert"
	"github.com/parbatch/parbatch/status"
	"testing"
	"time"
)

func completedResult(start, end int, meta interface{}) *ChunkResult {
	items := make([]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, i)
	}
	return &ChunkResult{
		Range:       IndexRange{Start: start, End: end},
		Items:       items,
		Metadata:    meta,
		Status:      status.COMPLETED,
		CompletedAt: time.Now(),
	}
}

func failedResult(start, end int) *ChunkResult {
	return &ChunkResult{
		Range:  IndexRange{Start: start, End: end},
		Status: status.CHUNK_FAILED,
		Err:    NewBatchError(ErrCodeChunk, "chunk [%d,%d) execution failed", start, end),
	}
}

func testConfig(policy string, strict bool) *runConfig {
	return &runConfig{mergePolicy: policy, strict: strict}
}

func TestAssemble_OrderRestored(t *testing.T) {
	a := newAssembler(10, testConfig(MergeConcatenate, false))
	a.add(completedResult(7, 10, nil))
	a.add(completedResult(0, 4, nil))
	a.add(completedResult(4, 7, nil))

	items, metadata, err := a.assemble()
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, metadata)
	assert.Equal(t, 10, len(items))
	for i, item := range items {
		assert.Equal(t, i, item)
	}
}

func TestAssemble_LenientInsertsMissingMarker(t *testing.T) {
	a := newAssembler(9, testConfig(MergeConcatenate, false))
	a.add(completedResult(6, 9, "m2"))
	a.add(failedResult(3, 6))
	a.add(completedResult(0, 3, "m0"))

	items, metadata, err := a.assemble()
	assert.Equal(t, nil, err)
	assert.Equal(t, 7, len(items))
	assert.Equal(t, 0, items[0])
	marker, ok := items[3].(MissingSegment)
	assert.T(t, ok)
	assert.Equal(t, IndexRange{Start: 3, End: 6}, marker.Range)
	assert.Equal(t, 8, items[6])

	list, ok := metadata.([]interface{})
	assert.T(t, ok)
	assert.Equal(t, []interface{}{"m0", "m2"}, list)
}

func TestAssemble_AdjacentGapsMergeIntoOneMarker(t *testing.T) {
	a := newAssembler(12, testConfig(MergeDiscard, false))
	a.add(completedResult(0, 3, nil))
	a.add(failedResult(3, 6))
	a.add(failedResult(6, 9))
	a.add(completedResult(9, 12, nil))

	items, _, err := a.assemble()
	assert.Equal(t, nil, err)
	assert.Equal(t, 7, len(items))
	marker, ok := items[3].(MissingSegment)
	assert.T(t, ok)
	assert.Equal(t, IndexRange{Start: 3, End: 9}, marker.Range)
}

func TestAssemble_StrictFailsOnGap(t *testing.T) {
	a := newAssembler(9, testConfig(MergeConcatenate, true))
	a.add(completedResult(0, 3, nil))
	a.add(failedResult(3, 6))
	a.add(completedResult(6, 9, nil))

	items, _, err := a.assemble()
	assert.NotEqual(t, nil, err)
	assert.Equal(t, 0, len(items))
	assert.Equal(t, ErrCodeRun, err.Code())
	assert.Equal(t, "strict run failed, missing ranges:[3,6)", err.Message())
	assert.NotEqual(t, nil, err.Unwrap())
}

func TestAssemble_TailGap(t *testing.T) {
	a := newAssembler(10, testConfig(MergeConcatenate, false))
	a.add(completedResult(0, 5, nil))

	items, _, err := a.assemble()
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, len(items))
	marker, ok := items[5].(MissingSegment)
	assert.T(t, ok)
	assert.Equal(t, IndexRange{Start: 5, End: 10}, marker.Range)
}

func TestAssemble_OverridePolicy(t *testing.T) {
	a := newAssembler(6, testConfig(MergeOverride, false))
	a.add(completedResult(3, 6, "later"))
	a.add(completedResult(0, 3, "last arrival"))

	_, metadata, err := a.assemble()
	assert.Equal(t, nil, err)
	assert.Equal(t, "last arrival", metadata)
}

func TestAssemble_DiscardPolicy(t *testing.T) {
	a := newAssembler(6, testConfig(MergeDiscard, false))
	a.add(completedResult(0, 3, "x"))
	a.add(completedResult(3, 6, "y"))

	_, metadata, err := a.assemble()
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, metadata)
}

func TestAssembler_Snapshot(t *testing.T) {
	a := newAssembler(9, testConfig(MergeConcatenate, false))
	a.add(completedResult(6, 9, "m2"))
	a.add(completedResult(0, 3, "m0"))
	a.add(failedResult(3, 6))

	ranges, items, metadata := a.snapshot()
	assert.Equal(t, []IndexRange{{Start: 0, End: 3}, {Start: 6, End: 9}}, ranges)
	assert.Equal(t, []interface{}{0, 1, 2, 6, 7, 8}, items)
	assert.Equal(t, []interface{}{"m0", "m2"}, metadata)
}
