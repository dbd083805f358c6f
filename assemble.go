package parbatch

import (
	"fmt"
	"github.com/parbatch/parbatch/status"
	"sort"
	"strings"
)

//assembler accumulate chunk results and rebuild input-ordered output.
//An assembler is confined to the collector goroutine, reassembly is
//incremental in the sense that results are folded in as they complete and a
//sorted snapshot can be taken at any point for checkpointing.
type assembler struct {
	totalItems  int
	mergePolicy string
	strict      bool
	results     []*ChunkResult
	failed      []*ChunkResult
	lastMeta    interface{}
	hasMeta     bool
}

func newAssembler(totalItems int, cfg *runConfig) *assembler {
	return &assembler{
		totalItems:  totalItems,
		mergePolicy: cfg.mergePolicy,
		strict:      cfg.strict,
	}
}

//add fold one chunk result in
func (a *assembler) add(result *ChunkResult) {
	switch result.Status {
	case status.COMPLETED, status.SKIPPED:
		a.results = append(a.results, result)
		if result.Metadata != nil {
			a.lastMeta = result.Metadata
			a.hasMeta = true
		}
	case status.CHUNK_FAILED:
		a.failed = append(a.failed, result)
	}
}

func (a *assembler) sorted() []*ChunkResult {
	sorted := append([]*ChunkResult(nil), a.results...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start < sorted[j].Range.Start
	})
	return sorted
}

//snapshot the completed state in input order for a checkpoint record. Items
//hold only produced ranges, the range list self-describes their positions.
func (a *assembler) snapshot() ([]IndexRange, []interface{}, interface{}) {
	sorted := a.sorted()
	ranges := make([]IndexRange, 0, len(sorted))
	items := make([]interface{}, 0, a.totalItems)
	for _, r := range sorted {
		ranges = append(ranges, r.Range)
		items = append(items, r.Items...)
	}
	return ranges, items, a.mergeMetadata(sorted)
}

//assemble rebuild the final output in input order. In lenient mode every
//maximal uncovered range becomes one MissingSegment marker, in strict mode any
//uncovered range fails the run.
func (a *assembler) assemble() ([]interface{}, interface{}, BatchError) {
	sorted := a.sorted()
	items := make([]interface{}, 0, a.totalItems)
	var gaps []IndexRange
	pos := 0
	for _, r := range sorted {
		if r.Range.Start > pos {
			gap := IndexRange{Start: pos, End: r.Range.Start}
			gaps = append(gaps, gap)
			items = append(items, MissingSegment{Range: gap})
		}
		items = append(items, r.Items...)
		pos = r.Range.End
	}
	if pos < a.totalItems {
		gap := IndexRange{Start: pos, End: a.totalItems}
		gaps = append(gaps, gap)
		items = append(items, MissingSegment{Range: gap})
	}
	if a.strict && (len(gaps) > 0 || len(a.failed) > 0) {
		msg := fmt.Sprintf("strict run failed, missing ranges:%s", rangeList(gaps))
		if len(a.failed) > 0 {
			return nil, nil, NewBatchError(ErrCodeRun, msg, a.failed[0].Err)
		}
		return nil, nil, NewBatchError(ErrCodeRun, msg)
	}
	return items, a.mergeMetadata(sorted), nil
}

//mergeMetadata combine chunk metadata per policy. Concatenation keeps one
//entry per produced range in input order, nil entries included, so the list
//stays aligned with the range list of a snapshot.
func (a *assembler) mergeMetadata(sorted []*ChunkResult) interface{} {
	if !a.hasMeta {
		return nil
	}
	switch a.mergePolicy {
	case MergeDiscard:
		return nil
	case MergeOverride:
		return a.lastMeta
	default:
		list := make([]interface{}, len(sorted))
		for i, r := range sorted {
			list[i] = r.Metadata
		}
		return list
	}
}

func rangeList(ranges []IndexRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
