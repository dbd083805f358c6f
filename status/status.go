package status

//RunPhase phase of a parallel run execution
type RunPhase string

const (
	//VALIDATING run arguments are being checked against declared descriptors
	VALIDATING RunPhase = "VALIDATING"
	//PLANNING input collection is being partitioned into chunks
	PLANNING RunPhase = "PLANNING"
	//DISPATCHING chunks are being submitted to the worker pool
	DISPATCHING RunPhase = "DISPATCHING"
	//RUNNING chunks are executing on the worker pool
	RUNNING RunPhase = "RUNNING"
	//REASSEMBLING chunk results are being merged back into input order
	REASSEMBLING RunPhase = "REASSEMBLING"
	//PERSISTING final checkpoint is being written
	PERSISTING RunPhase = "PERSISTING"
	//DONE run has finished, possibly degraded
	DONE RunPhase = "DONE"
	//STOPPED run was cancelled cooperatively before all chunks finished
	STOPPED RunPhase = "STOPPED"
	//FAILED run has failed before producing a complete result
	FAILED RunPhase = "FAILED"
)

//Terminal report whether the phase is a final one
func (p RunPhase) Terminal() bool {
	return p == DONE || p == STOPPED || p == FAILED
}

//ChunkStatus status of a single chunk execution
type ChunkStatus string

const (
	//PENDING chunk is planned but not yet submitted
	PENDING ChunkStatus = "PENDING"
	//EXECUTING chunk is running on a pool worker
	EXECUTING ChunkStatus = "EXECUTING"
	//COMPLETED chunk has produced its result
	COMPLETED ChunkStatus = "COMPLETED"
	//SKIPPED chunk was restored from a checkpoint and not re-executed
	SKIPPED ChunkStatus = "SKIPPED"
	//CHUNK_FAILED chunk execution returned an error or panicked
	CHUNK_FAILED ChunkStatus = "FAILED"
)

var severities = map[ChunkStatus]int{
	PENDING:      0,
	EXECUTING:    1,
	SKIPPED:      2,
	COMPLETED:    3,
	CHUNK_FAILED: 4,
}

//And combine two chunk statuses keeping the more severe one
func (s ChunkStatus) And(other ChunkStatus) ChunkStatus {
	i1, ok1 := severities[s]
	i2, ok2 := severities[other]
	if ok1 && ok2 {
		if i1 < i2 {
			return other
		} else {
			return s
		}
	} else if ok1 {
		return other
	} else {
		return s
	}
}
