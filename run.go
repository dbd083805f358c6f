package parbatch

import (
	"context"
	"github.com/parbatch/parbatch/checkpoint"
	"github.com/parbatch/parbatch/status"
	"github.com/parbatch/parbatch/validate"
	"reflect"
	"runtime/debug"
	"time"
)

//execute drive one run through its phases on a run pool worker. The collector
//loop below is the single consumer of the result stream and the only writer of
//checkpoints, run history and progress.
func (r *Runner) execute(ctx context.Context, execution *RunExecution, items interface{}, params map[string]interface{}) (result *RunResult, err error) {
	if !r.markActive(execution.RunKey) {
		logger.Error(ctx, "run with same params already in progress, runName:%v, runKey:%v", r.name, execution.RunKey)
		return nil, NewBatchError(ErrCodeConcurrency, "run %v with the same params is already in progress", r.name)
	}
	defer r.release(execution.RunKey)
	defer func() {
		if er := recover(); er != nil {
			logger.Error(ctx, "panic in run executing, runName:%v, runId:%v, err:%v, stack:%v", r.name, execution.RunID, er, string(debug.Stack()))
			err = NewBatchError(ErrCodeGeneral, "panic in run execution: %v", er)
		}
		if err != nil {
			result = nil
			if batchErr, ok := err.(BatchError); ok && batchErr.Code() == ErrCodeStop {
				execution.stop()
			} else {
				execution.finish(err)
			}
		}
		for _, listener := range r.runListeners {
			if lerr := listener.AfterRun(execution); lerr != nil {
				logger.Error(ctx, "run listener execute err, runName:%v, runId:%v, listener:%v, err:%v", r.name, execution.RunID, reflect.TypeOf(listener).String(), lerr)
				if err == nil {
					err = lerr
					result = nil
					execution.finish(lerr)
				}
			}
		}
		if e := saveRunExecution(execution); e != nil {
			logger.Error(ctx, "save run execution failed, runName:%v, runId:%v, err:%v", r.name, execution.RunID, e)
		}
	}()

	logger.Info(ctx, "start run, runName:%v, runId:%v", r.name, execution.RunID)
	execution.start()
	if e := saveRunExecution(execution); e != nil {
		logger.Error(ctx, "save run execution failed, runName:%v, runId:%v, err:%v", r.name, execution.RunID, e)
	}

	normalized, berr := r.checkArguments(ctx, items, params)
	if berr != nil {
		return nil, berr
	}
	for _, listener := range r.runListeners {
		if berr = listener.BeforeRun(execution); berr != nil {
			logger.Error(ctx, "run listener execute err, runName:%v, runId:%v, listener:%v, err:%v", r.name, execution.RunID, reflect.TypeOf(listener).String(), berr)
			return nil, berr
		}
	}

	execution.enter(status.PLANNING)
	cfg, berr := parseRunConfig(params)
	if berr != nil {
		return nil, berr
	}
	chunks := planChunks(normalized, cfg.resolveChunkCount(len(normalized)))
	execution.TotalItems = len(normalized)
	execution.TotalChunks = len(chunks)
	asm := newAssembler(len(normalized), cfg)
	snapshotCfg := cfg.effectiveConfig(len(normalized), len(chunks))

	var writer *checkpoint.Writer
	if cfg.checkpointPath != "" && len(chunks) > 0 {
		path, er := formatCheckpointPath(cfg.checkpointPath, execution)
		if er != nil {
			return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamCheckpointPath, er)
		}
		execution.CheckpointPath = path
		writer = checkpoint.NewWriter(r.storage, path)
	}
	if e := saveRunExecution(execution); e != nil {
		logger.Error(ctx, "save run execution failed, runName:%v, runId:%v, err:%v", r.name, execution.RunID, e)
	}

	skip := map[IndexRange]bool{}
	if cfg.resume && writer != nil {
		if skip, berr = r.seedFromCheckpoint(ctx, execution, asm, writer.Path(), len(chunks), cfg); berr != nil {
			return nil, berr
		}
	}
	remaining := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if !skip[chunk.Range] {
			remaining = append(remaining, chunk)
		}
	}

	reporters := r.reporters
	if cfg.showProgress {
		reporters = append(append([]ProgressReporter(nil), reporters...), NewConsoleProgress(nil))
	}
	notifyReporters(ctx, reporters, func(reporter ProgressReporter) {
		reporter.OnStart(execution.TotalChunks)
	})
	for _, chunk := range chunks {
		if skip[chunk.Range] {
			rng := chunk.Range
			notifyReporters(ctx, reporters, func(reporter ProgressReporter) {
				reporter.OnChunkDone(rng)
			})
		}
	}

	execution.enter(status.DISPATCHING)
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()
	results := dispatch(dispatchCtx, execution, remaining, r.processor, params, cfg.poolSize)

	execution.enter(status.RUNNING)
	finished := 0
	for chunkResult := range results {
		execution.record(chunkResult)
		asm.add(chunkResult)
		finished++
		if e := saveChunkExecution(execution, chunkResult); e != nil {
			logger.Error(ctx, "save chunk execution failed, runId:%v, range:%v, err:%v", execution.RunID, chunkResult.Range, e)
		}
		r.notifyChunk(ctx, execution, chunkResult)
		rng := chunkResult.Range
		notifyReporters(ctx, reporters, func(reporter ProgressReporter) {
			reporter.OnChunkDone(rng)
		})
		if chunkResult.Status == status.CHUNK_FAILED && cfg.strict {
			cancelDispatch()
		}
		if writer != nil && finished%cfg.checkpointInterval == 0 {
			persistCheckpoint(ctx, execution, writer, asm, snapshotCfg)
		}
	}
	notifyReporters(ctx, reporters, func(reporter ProgressReporter) {
		reporter.OnFinish()
	})

	if ctx.Err() != nil {
		execution.enter(status.PERSISTING)
		if writer != nil {
			persistCheckpoint(ctx, execution, writer, asm, snapshotCfg)
		}
		logger.Info(ctx, "run stopped, runName:%v, runId:%v, completed:%v of %v chunks", r.name, execution.RunID, execution.CompletedChunks+execution.SkippedChunks, execution.TotalChunks)
		return nil, NewBatchError(ErrCodeStop, "run %v stopped", r.name)
	}

	execution.enter(status.REASSEMBLING)
	outItems, metadata, asmErr := asm.assemble()

	execution.enter(status.PERSISTING)
	if writer != nil {
		persistCheckpoint(ctx, execution, writer, asm, snapshotCfg)
	}
	if asmErr != nil {
		logger.Error(ctx, "run failed in reassembly, runName:%v, runId:%v, err:%v", r.name, execution.RunID, asmErr)
		return nil, asmErr
	}

	execution.finish(nil)
	result = &RunResult{Metadata: metadata, Execution: execution}
	if cfg.returnResults {
		result.Items = outItems
	}
	logger.Info(ctx, "finish run, runName:%v, runId:%v, phase:%v, completed:%v, failed:%v, skipped:%v",
		r.name, execution.RunID, execution.Phase, execution.CompletedChunks, execution.FailedChunks, execution.SkippedChunks)
	return result, nil
}

//checkArguments evaluate the structural rules, the engine option rules and the
//user-declared rules in one pass, aggregating every violation into one report
func (r *Runner) checkArguments(ctx context.Context, items interface{}, params map[string]interface{}) ([]interface{}, BatchError) {
	structural := []validate.Argument{
		validate.Arg("items").At(0).OfKind(validate.List).Required(),
		validate.Arg("params").At(1).OfKind(validate.Mapping),
	}
	var violations []validate.Violation
	if err := validate.Check(r.signature(), structural, []interface{}{items, params}, nil); err != nil {
		violations = append(violations, err.(*validate.Error).Violations...)
	}
	rules := append(optionArguments(), r.arguments...)
	if err := validate.Check(r.signature(), rules, nil, params); err != nil {
		violations = append(violations, err.(*validate.Error).Violations...)
	}
	violations = append(violations, optionViolations(params)...)
	if len(violations) > 0 {
		report := &validate.Error{Signature: r.signature(), Violations: violations}
		logger.Error(ctx, "run arguments rejected, runName:%v, err:%v", r.name, report)
		return nil, NewBatchError(ErrCodeValidation, "run %v arguments rejected", r.name, report)
	}
	normalized, _ := normalizeItems(items)
	return normalized, nil
}

//persistCheckpoint write the current snapshot. A failed write degrades the run
//but never fails it, the previous checkpoint file stays intact.
func persistCheckpoint(ctx context.Context, execution *RunExecution, writer *checkpoint.Writer, asm *assembler, config map[string]interface{}) {
	ranges, items, metadata := asm.snapshot()
	record := &checkpoint.Record{
		RunID:           execution.RunID,
		CompletedRanges: rangePairs(ranges),
		Items:           items,
		Metadata:        metadata,
		Config:          config,
		Timestamp:       time.Now(),
	}
	if err := writer.Persist(record); err != nil {
		logger.Error(ctx, "persist checkpoint failed, runId:%v, path:%v, err:%v", execution.RunID, writer.Path(), err)
		execution.CheckpointDegraded = true
		return
	}
	logger.Debug(ctx, "checkpoint persisted, runId:%v, path:%v, ranges:%v, items:%v", execution.RunID, writer.Path(), len(ranges), len(items))
}

//notifyChunk run chunk listeners for one finished chunk, panics are isolated
//so a listener can not break the run
func (r *Runner) notifyChunk(ctx context.Context, execution *RunExecution, result *ChunkResult) {
	for _, listener := range r.chunkListeners {
		l := listener
		func() {
			defer func() {
				if err := recover(); err != nil {
					logger.Error(ctx, "panic in chunk listener, runId:%v, listener:%v, err:%v", execution.RunID, reflect.TypeOf(l).String(), err)
				}
			}()
			l.AfterChunk(execution, result)
			if result.Status == status.CHUNK_FAILED {
				l.OnError(execution, result, result.Err)
			}
		}()
	}
}

func notifyReporters(ctx context.Context, reporters []ProgressReporter, fn func(ProgressReporter)) {
	for _, reporter := range reporters {
		rep := reporter
		func() {
			defer func() {
				if err := recover(); err != nil {
					logger.Error(ctx, "panic in progress reporter:%v, err:%v", reflect.TypeOf(rep).String(), err)
				}
			}()
			fn(rep)
		}()
	}
}
