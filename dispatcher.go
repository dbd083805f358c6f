package parbatch

import (
	"context"
	"fmt"
	"github.com/parbatch/parbatch/status"
	"golang.org/x/sync/semaphore"
	"runtime/debug"
	"sync"
	"time"
)

//dispatch submit chunks to the shared worker pool and stream results back in
//completion order. At most poolSize chunks of this run are in flight at once,
//the submitting side blocks only on that backpressure. When ctx is cancelled
//no further chunks are submitted, in-flight chunks finish and deliver their
//results, then the channel closes.
func dispatch(ctx context.Context, execution *RunExecution, chunks []Chunk, processor Processor, params map[string]interface{}, poolSize int) <-chan *ChunkResult {
	results := make(chan *ChunkResult, len(chunks))
	go func() {
		defer close(results)
		sem := semaphore.NewWeighted(int64(poolSize))
		wg := sync.WaitGroup{}
		for i, chunk := range chunks {
			if err := sem.Acquire(ctx, 1); err != nil {
				logger.Info(ctx, "run dispatch cancelled, runId:%v, submitted:%v of %v", execution.RunID, i, len(chunks))
				break
			}
			name := fmt.Sprintf("%s:%04d", execution.RunName, i)
			c := chunk
			wg.Add(1)
			err := chunkPool.Go(func() {
				defer wg.Done()
				defer sem.Release(1)
				results <- runChunk(ctx, name, c, processor, params)
			})
			if err != nil {
				wg.Done()
				sem.Release(1)
				logger.Error(ctx, "submit chunk to pool failed, runId:%v, chunk:%v, err:%v", execution.RunID, name, err)
				results <- failedChunkResult(c, time.Now(), NewBatchError(ErrCodeChunk, "submit chunk:%v to pool", name, err))
			}
		}
		wg.Wait()
	}()
	return results
}

//runChunk execute the processor for one chunk on a pool worker. Any failure,
//panics included, becomes a failed ChunkResult, nothing crosses the goroutine.
func runChunk(ctx context.Context, name string, chunk Chunk, processor Processor, params map[string]interface{}) (result *ChunkResult) {
	start := time.Now()
	defer func() {
		if err := recover(); err != nil {
			logger.Error(ctx, "panic in chunk executing, chunk:%v, range:%v, err:%v, stack:%v", name, chunk.Range, err, string(debug.Stack()))
			result = failedChunkResult(chunk, start, NewBatchError(ErrCodeChunk, "panic in chunk execution: %v", err))
		}
	}()
	logger.Debug(ctx, "chunk execute start, chunk:%v, range:%v", name, chunk.Range)
	items, metadata, err := processor.Process(chunk.Items, params)
	if err != nil {
		logger.Error(ctx, "chunk execute failed, chunk:%v, range:%v, err:%v", name, chunk.Range, err)
		return failedChunkResult(chunk, start, NewBatchError(ErrCodeChunk, "chunk %v execution failed", name, err))
	}
	logger.Debug(ctx, "chunk execute completed, chunk:%v, range:%v, items:%v", name, chunk.Range, len(items))
	return &ChunkResult{
		Range:       chunk.Range,
		Items:       items,
		Metadata:    metadata,
		Status:      status.COMPLETED,
		StartTime:   start,
		CompletedAt: time.Now(),
	}
}

func failedChunkResult(chunk Chunk, start time.Time, err BatchError) *ChunkResult {
	return &ChunkResult{
		Range:       chunk.Range,
		Status:      status.CHUNK_FAILED,
		Err:         err,
		StartTime:   start,
		CompletedAt: time.Now(),
	}
}
