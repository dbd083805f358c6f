package parbatch

//RunListener run listener
type RunListener interface {
	//BeforeRun execute after validation passed and before chunks are planned
	BeforeRun(execution *RunExecution) BatchError
	//AfterRun execute after run end either normally or abnormally
	AfterRun(execution *RunExecution) BatchError
}

//ChunkListener run listener
type ChunkListener interface {
	//AfterChunk execute on the collector goroutine for every finished chunk
	AfterChunk(execution *RunExecution, result *ChunkResult)
	//OnError execute when a chunk finished with a failure
	OnError(execution *RunExecution, result *ChunkResult, err BatchError)
}

//ProgressReporter advisory sink for run progress. Implementations must be safe
//for concurrent use, the engine isolates reporter panics from the run outcome.
type ProgressReporter interface {
	//OnStart report the total number of chunks before dispatch
	OnStart(totalChunks int)
	//OnChunkDone report one finished chunk range
	OnChunkDone(rng IndexRange)
	//OnFinish report the end of the run
	OnFinish()
}
