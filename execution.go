package parbatch

import (
	"fmt"
	"github.com/parbatch/parbatch/status"
	"time"
)

//IndexRange a half-open interval [Start,End) of absolute positions in the input collection
type IndexRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r IndexRange) Len() int {
	return r.End - r.Start
}

func (r IndexRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

//Chunk a contiguous segment of the input collection executed by one worker
type Chunk struct {
	Range IndexRange
	Items []interface{}
}

//MissingSegment marker inserted in reassembled output for a range that produced no result
type MissingSegment struct {
	Range IndexRange `json:"missingRange"`
}

//ChunkResult outcome of one chunk execution, emitted in completion order
type ChunkResult struct {
	Range       IndexRange
	Items       []interface{}
	Metadata    interface{}
	Status      status.ChunkStatus
	Err         BatchError
	StartTime   time.Time
	CompletedAt time.Time
}

//RunExecution runtime state of one parallel run
type RunExecution struct {
	RunExecutionId     int64
	RunID              string
	RunKey             string
	RunName            string
	RunParams          map[string]interface{}
	Phase              status.RunPhase
	RunContext         *BatchContext
	TotalItems         int
	TotalChunks        int
	CompletedChunks    int
	FailedChunks       int
	SkippedChunks      int
	CompletedRanges    []IndexRange
	FailedRanges       []IndexRange
	Degraded           bool
	CheckpointDegraded bool
	CheckpointPath     string
	CreateTime         time.Time
	StartTime          time.Time
	EndTime            time.Time
	FailError          error
	LastUpdated        time.Time
	Version            int64
}

func (execution *RunExecution) start() {
	execution.StartTime = time.Now()
	execution.Phase = status.VALIDATING
}

func (execution *RunExecution) enter(phase status.RunPhase) {
	execution.Phase = phase
	execution.LastUpdated = time.Now()
}

func (execution *RunExecution) finish(err error) {
	if err != nil {
		execution.Phase = status.FAILED
		execution.FailError = err
	} else {
		execution.Phase = status.DONE
	}
	execution.EndTime = time.Now()
	execution.LastUpdated = execution.EndTime
}

func (execution *RunExecution) stop() {
	execution.Phase = status.STOPPED
	execution.EndTime = time.Now()
	execution.LastUpdated = execution.EndTime
}

//record fold one chunk result into the run counters
func (execution *RunExecution) record(result *ChunkResult) {
	switch result.Status {
	case status.COMPLETED:
		execution.CompletedChunks++
		execution.CompletedRanges = append(execution.CompletedRanges, result.Range)
	case status.SKIPPED:
		execution.SkippedChunks++
		execution.CompletedRanges = append(execution.CompletedRanges, result.Range)
	case status.CHUNK_FAILED:
		execution.FailedChunks++
		execution.FailedRanges = append(execution.FailedRanges, result.Range)
		execution.Degraded = true
	}
	execution.LastUpdated = time.Now()
}

func (execution *RunExecution) deepCopy() *RunExecution {
	result := &RunExecution{
		RunExecutionId:     execution.RunExecutionId,
		RunID:              execution.RunID,
		RunKey:             execution.RunKey,
		RunName:            execution.RunName,
		RunParams:          execution.RunParams,
		Phase:              execution.Phase,
		RunContext:         execution.RunContext.DeepCopy(),
		TotalItems:         execution.TotalItems,
		TotalChunks:        execution.TotalChunks,
		CompletedChunks:    execution.CompletedChunks,
		FailedChunks:       execution.FailedChunks,
		SkippedChunks:      execution.SkippedChunks,
		CompletedRanges:    append([]IndexRange(nil), execution.CompletedRanges...),
		FailedRanges:       append([]IndexRange(nil), execution.FailedRanges...),
		Degraded:           execution.Degraded,
		CheckpointDegraded: execution.CheckpointDegraded,
		CheckpointPath:     execution.CheckpointPath,
		CreateTime:         execution.CreateTime,
		StartTime:          execution.StartTime,
		EndTime:            execution.EndTime,
		FailError:          execution.FailError,
		LastUpdated:        execution.LastUpdated,
		Version:            execution.Version,
	}
	return result
}
