package parbatch

import (
	"context"
	"github.com/parbatch/parbatch/checkpoint"
	"github.com/parbatch/parbatch/status"
	"sort"
)

//seedFromCheckpoint feed the completed results of a prior checkpoint into the
//run so only uncovered ranges are dispatched. A missing or unreadable
//checkpoint starts the run from scratch, an incompatible one fails it.
func (r *Runner) seedFromCheckpoint(ctx context.Context, execution *RunExecution, asm *assembler, path string, chunkCount int, cfg *runConfig) (map[IndexRange]bool, BatchError) {
	skip := map[IndexRange]bool{}
	record, err := checkpoint.Load(r.storage, path)
	if err != nil {
		logger.Info(ctx, "no checkpoint to resume from, runName:%v, path:%v, err:%v", r.name, path, err)
		return skip, nil
	}
	seeds, berr := restoreFromRecord(record, execution.TotalItems, chunkCount, cfg.mergePolicy)
	if berr != nil {
		logger.Error(ctx, "resume rejected, runName:%v, path:%v, err:%v", r.name, path, berr)
		return nil, berr
	}
	for _, seed := range seeds {
		skip[seed.Range] = true
		execution.record(seed)
		asm.add(seed)
		if e := saveChunkExecution(execution, seed); e != nil {
			logger.Error(ctx, "save chunk execution failed, runId:%v, range:%v, err:%v", execution.RunID, seed.Range, e)
		}
	}
	if len(seeds) > 0 {
		logger.Info(ctx, "resumed from checkpoint, runName:%v, runId:%v, path:%v, skipped:%v of %v chunks", r.name, execution.RunID, path, len(seeds), chunkCount)
	}
	return skip, nil
}

func rangePairs(ranges []IndexRange) [][2]int {
	pairs := make([][2]int, len(ranges))
	for i, r := range ranges {
		pairs[i] = [2]int{r.Start, r.End}
	}
	return pairs
}

func pairRanges(pairs [][2]int) []IndexRange {
	ranges := make([]IndexRange, len(pairs))
	for i, p := range pairs {
		ranges[i] = IndexRange{Start: p[0], End: p[1]}
	}
	return ranges
}

//restoreFromRecord rebuild chunk results for the completed ranges of a prior
//checkpoint so re-execution can skip them. The record must come from a run
//with the same item count, chunk count and merge policy, otherwise the planned
//ranges would not line up with the recorded ones.
func restoreFromRecord(record *checkpoint.Record, totalItems, chunkCount int, mergePolicy string) ([]*ChunkResult, BatchError) {
	cfgCtx := NewBatchContextOf(record.Config)
	prevItems, err := cfgCtx.GetInt("totalItems", -1)
	if err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid totalItems in checkpoint config", err)
	}
	prevChunks, err := cfgCtx.GetInt(ParamChunkCount, -1)
	if err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid chunkCount in checkpoint config", err)
	}
	prevPolicy, err := cfgCtx.GetString(ParamMetadataMergePolicy, "")
	if err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid metadataMergePolicy in checkpoint config", err)
	}
	if prevItems != totalItems || prevChunks != chunkCount || prevPolicy != mergePolicy {
		return nil, NewBatchError(ErrCodeValidation,
			"checkpoint incompatible with this run, totalItems:%v vs %v, chunkCount:%v vs %v, metadataMergePolicy:%v vs %v",
			prevItems, totalItems, prevChunks, chunkCount, prevPolicy, mergePolicy)
	}

	ranges := pairRanges(record.CompletedRanges)
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})
	metaList, _ := record.Metadata.([]interface{})
	if len(metaList) != len(ranges) {
		metaList = nil
	}

	results := make([]*ChunkResult, 0, len(ranges))
	pos := 0
	for i, rng := range ranges {
		if rng.Len() <= 0 || pos+rng.Len() > len(record.Items) {
			return nil, NewBatchError(ErrCodeValidation,
				"checkpoint items do not cover range %v, have %v items from position %v", rng, len(record.Items), pos)
		}
		result := &ChunkResult{
			Range:       rng,
			Items:       record.Items[pos : pos+rng.Len()],
			Status:      status.SKIPPED,
			CompletedAt: record.Timestamp,
		}
		if metaList != nil {
			result.Metadata = metaList[i]
		} else if mergePolicy == MergeOverride && i == len(ranges)-1 {
			result.Metadata = record.Metadata
		}
		results = append(results, result)
		pos += rng.Len()
	}
	if pos != len(record.Items) {
		return nil, NewBatchError(ErrCodeValidation,
			"checkpoint holds %v items but its ranges cover %v", len(record.Items), pos)
	}
	return results, nil
}
