package parbatch

import (
	"bytes"
	"database/sql"
	"github.com/parbatch/parbatch/status"
	"github.com/parbatch/parbatch/util"
	"github.com/pkg/errors"
	"time"
)

type batchRunExecution struct {
	RunExecutionId     int64
	RunID              string
	RunKey             string
	RunName            string
	RunParams          string
	Phase              string
	TotalItems         int64
	TotalChunks        int64
	CompletedChunks    int64
	FailedChunks       int64
	SkippedChunks      int64
	Degraded           bool
	CheckpointDegraded bool
	CheckpointPath     string
	FailMessage        string
	CreateTime         time.Time
	StartTime          sql.NullTime
	EndTime            sql.NullTime
	LastUpdated        time.Time
	Version            int64
}

//ChunkExecution persisted outcome of one chunk of a run
type ChunkExecution struct {
	ChunkExecutionId int64
	RunExecutionId   int64
	RunID            string
	Range            IndexRange
	ItemCount        int64
	Status           status.ChunkStatus
	FailMessage      string
	StartTime        time.Time
	CompletedAt      time.Time
	LastUpdated      time.Time
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

//saveRunExecution insert or update one run history row. The first save fills
//RunExecutionId back, later saves bump the optimistic version and fail with
//ConcurrentError when the stored row moved on.
func saveRunExecution(execution *RunExecution) BatchError {
	if db == nil {
		return nil
	}
	paramsJson, err := util.JsonString(execution.RunParams)
	if err != nil {
		paramsJson = ""
	}
	failMessage := ""
	if execution.FailError != nil {
		failMessage = execution.FailError.Error()
	}
	buff := bytes.NewBufferString("")
	args := make([]interface{}, 0)
	if execution.RunExecutionId == 0 {
		buff.WriteString("insert into batch_run_execution(run_id, run_key, run_name, run_params, phase, total_items, total_chunks, completed_chunks, failed_chunks, skipped_chunks, degraded, checkpoint_degraded, checkpoint_path, fail_message, create_time, start_time, end_time, last_updated, version) values")
		buff.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, execution.RunID, execution.RunKey, execution.RunName, paramsJson, string(execution.Phase),
			execution.TotalItems, execution.TotalChunks, execution.CompletedChunks, execution.FailedChunks, execution.SkippedChunks,
			execution.Degraded, execution.CheckpointDegraded, execution.CheckpointPath, failMessage,
			execution.CreateTime, nullTime(execution.StartTime), nullTime(execution.EndTime), time.Now(), 1)
		res, err := db.Exec(buff.String(), args...)
		if err != nil {
			return NewBatchError(ErrCodeDbFail, "insert batch_run_execution failed", err)
		}
		id, er := res.LastInsertId()
		if er == nil && id > 0 {
			execution.RunExecutionId = id
		}
		execution.Version = 1
	} else {
		buff.WriteString("update batch_run_execution set phase=?, total_items=?, total_chunks=?, completed_chunks=?, failed_chunks=?, skipped_chunks=?, degraded=?, checkpoint_degraded=?, checkpoint_path=?, fail_message=?, start_time=?, end_time=?, last_updated=?, version=? where run_execution_id=? and version=?")
		args = append(args, string(execution.Phase),
			execution.TotalItems, execution.TotalChunks, execution.CompletedChunks, execution.FailedChunks, execution.SkippedChunks,
			execution.Degraded, execution.CheckpointDegraded, execution.CheckpointPath, failMessage,
			nullTime(execution.StartTime), nullTime(execution.EndTime), time.Now(), execution.Version+1,
			execution.RunExecutionId, execution.Version)
		res, err := db.Exec(buff.String(), args...)
		if err != nil {
			return NewBatchError(ErrCodeDbFail, "update batch_run_execution failed", err)
		}
		rowsAffected, _ := res.RowsAffected()
		if rowsAffected <= 0 {
			return ConcurrentError
		}
		execution.Version += 1
	}
	return nil
}

//saveChunkExecution insert one chunk history row, chunk rows are append-only
func saveChunkExecution(execution *RunExecution, result *ChunkResult) BatchError {
	if db == nil {
		return nil
	}
	failMessage := ""
	if result.Err != nil {
		failMessage = result.Err.Error()
	}
	buff := bytes.NewBufferString("")
	args := make([]interface{}, 0)
	buff.WriteString("insert into batch_chunk_execution(run_execution_id, run_id, range_start, range_end, item_count, status, fail_message, start_time, complete_time, last_updated) values")
	buff.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	args = append(args, execution.RunExecutionId, execution.RunID, result.Range.Start, result.Range.End, len(result.Items),
		string(result.Status), failMessage, nullTime(result.StartTime), nullTime(result.CompletedAt), time.Now())
	if _, err := db.Exec(buff.String(), args...); err != nil {
		return NewBatchError(ErrCodeDbFail, "insert batch_chunk_execution failed", err)
	}
	return nil
}

func scanRunExecution(rows *sql.Rows) (*RunExecution, BatchError) {
	row := &batchRunExecution{}
	err := rows.Scan(&row.RunExecutionId, &row.RunID, &row.RunKey, &row.RunName, &row.RunParams, &row.Phase,
		&row.TotalItems, &row.TotalChunks, &row.CompletedChunks, &row.FailedChunks, &row.SkippedChunks,
		&row.Degraded, &row.CheckpointDegraded, &row.CheckpointPath, &row.FailMessage,
		&row.CreateTime, &row.StartTime, &row.EndTime, &row.LastUpdated, &row.Version)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "scan batch_run_execution failed", err)
	}
	params := map[string]interface{}{}
	if row.RunParams != "" {
		if er := util.ParseJson(row.RunParams, &params); er != nil {
			return nil, NewBatchError(ErrCodeGeneral, "parse run params of run:%v", row.RunID, er)
		}
	}
	execution := &RunExecution{
		RunExecutionId:     row.RunExecutionId,
		RunID:              row.RunID,
		RunKey:             row.RunKey,
		RunName:            row.RunName,
		RunParams:          params,
		Phase:              status.RunPhase(row.Phase),
		RunContext:         NewBatchContext(),
		TotalItems:         int(row.TotalItems),
		TotalChunks:        int(row.TotalChunks),
		CompletedChunks:    int(row.CompletedChunks),
		FailedChunks:       int(row.FailedChunks),
		SkippedChunks:      int(row.SkippedChunks),
		Degraded:           row.Degraded,
		CheckpointDegraded: row.CheckpointDegraded,
		CheckpointPath:     row.CheckpointPath,
		CreateTime:         row.CreateTime,
		StartTime:          row.StartTime.Time,
		EndTime:            row.EndTime.Time,
		LastUpdated:        row.LastUpdated,
		Version:            row.Version,
	}
	if row.FailMessage != "" {
		execution.FailError = errors.New(row.FailMessage)
	}
	return execution, nil
}

const runExecutionColumns = "run_execution_id, run_id, run_key, run_name, run_params, phase, total_items, total_chunks, completed_chunks, failed_chunks, skipped_chunks, degraded, checkpoint_degraded, checkpoint_path, fail_message, create_time, start_time, end_time, last_updated, version"

//FindRunExecutions load recent run history rows, newest first. An empty name
//matches every runner, limit falls back to 20 when not positive.
func FindRunExecutions(name string, limit int) ([]*RunExecution, error) {
	if db == nil {
		return nil, NewBatchError(ErrCodeDbFail, "no database configured, call SetDB first")
	}
	if limit <= 0 {
		limit = 20
	}
	var rows *sql.Rows
	var err error
	if name != "" {
		rows, err = db.Query("select "+runExecutionColumns+" from batch_run_execution where run_name=? order by run_execution_id desc limit ?", name, limit)
	} else {
		rows, err = db.Query("select "+runExecutionColumns+" from batch_run_execution order by run_execution_id desc limit ?", limit)
	}
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_run_execution failed", err)
	}
	defer rows.Close()

	results := make([]*RunExecution, 0)
	for rows.Next() {
		execution, berr := scanRunExecution(rows)
		if berr != nil {
			return nil, berr
		}
		results = append(results, execution)
	}
	return results, nil
}

//FindRunExecution load one run history row by its run id
func FindRunExecution(runID string) (*RunExecution, error) {
	if db == nil {
		return nil, NewBatchError(ErrCodeDbFail, "no database configured, call SetDB first")
	}
	rows, err := db.Query("select "+runExecutionColumns+" from batch_run_execution where run_id=?", runID)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_run_execution failed", err)
	}
	defer rows.Close()

	if rows.Next() {
		return scanRunExecution(rows)
	}
	return nil, nil
}

//FindChunkExecutions load the chunk history of one run ordered by range start
func FindChunkExecutions(runID string) ([]*ChunkExecution, error) {
	if db == nil {
		return nil, NewBatchError(ErrCodeDbFail, "no database configured, call SetDB first")
	}
	rows, err := db.Query("select chunk_execution_id, run_execution_id, run_id, range_start, range_end, item_count, status, fail_message, start_time, complete_time, last_updated from batch_chunk_execution where run_id=? order by range_start", runID)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batch_chunk_execution failed", err)
	}
	defer rows.Close()

	results := make([]*ChunkExecution, 0)
	for rows.Next() {
		chunk := &ChunkExecution{}
		st := ""
		var startTime, completeTime sql.NullTime
		err = rows.Scan(&chunk.ChunkExecutionId, &chunk.RunExecutionId, &chunk.RunID, &chunk.Range.Start, &chunk.Range.End,
			&chunk.ItemCount, &st, &chunk.FailMessage, &startTime, &completeTime, &chunk.LastUpdated)
		if err != nil {
			return nil, NewBatchError(ErrCodeDbFail, "scan batch_chunk_execution failed", err)
		}
		chunk.Status = status.ChunkStatus(st)
		chunk.StartTime = startTime.Time
		chunk.CompletedAt = completeTime.Time
		results = append(results, chunk)
	}
	return results, nil
}
