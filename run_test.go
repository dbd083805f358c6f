package parbatch

import (
	"bytes"
	"context"
	"fmt"
	"github.com/bmizerany/assert"
	"github.com/parbatch/parbatch/checkpoint"
	"github.com/parbatch/parbatch/status"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func failWhenFirst(first int) func(items []interface{}) bool {
	return func(items []interface{}) bool {
		return items[0].(int) == first
	}
}

func stampItems(items []interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = fmt.Sprintf("v%02d", it.(int))
	}
	return out
}

func TestRunOrderPreserved(t *testing.T) {
	runner := NewRunner("ordered", doubleItems).Build()
	input := make([]int, 17)
	for i := range input {
		input[i] = i
	}
	result, err := runner.Invoke(context.Background(), input, map[string]interface{}{ParamChunkCount: 5})
	assert.Equal(t, nil, err)
	assert.Equal(t, 17, len(result.Items))
	for i := 0; i < 17; i++ {
		assert.Equal(t, i*2, result.Items[i])
	}

	execution := result.Execution
	assert.Equal(t, status.DONE, execution.Phase)
	assert.Equal(t, 17, execution.TotalItems)
	assert.Equal(t, 5, execution.TotalChunks)
	assert.Equal(t, 5, execution.CompletedChunks)
	assert.Equal(t, 0, execution.FailedChunks)
	assert.Equal(t, false, execution.Degraded)
}

func TestRunPartialFailureLenient(t *testing.T) {
	handler := &countingHandler{fail: failWhenFirst(3)}
	runner := NewRunner("lenient", handler).Build()

	result, err := runner.Invoke(context.Background(), intItems(12), map[string]interface{}{ParamChunkCount: 4})
	assert.Equal(t, nil, err)
	expected := []interface{}{
		0, 2, 4,
		MissingSegment{Range: IndexRange{Start: 3, End: 6}},
		12, 14, 16,
		18, 20, 22,
	}
	assert.Equal(t, expected, result.Items)

	execution := result.Execution
	assert.Equal(t, status.DONE, execution.Phase)
	assert.Equal(t, true, execution.Degraded)
	assert.Equal(t, 3, execution.CompletedChunks)
	assert.Equal(t, 1, execution.FailedChunks)
	assert.Equal(t, []IndexRange{{Start: 3, End: 6}}, execution.FailedRanges)
	assert.Equal(t, 4, handler.count())
}

func TestRunStrictFailure(t *testing.T) {
	handler := &countingHandler{fail: failWhenFirst(9)}
	runner := NewRunner("strict", handler).Build()

	result, err := runner.Invoke(context.Background(), intItems(12), map[string]interface{}{
		ParamChunkCount: 4,
		ParamStrict:     true,
	})
	assert.Equal(t, (*RunResult)(nil), result)
	assert.NotEqual(t, nil, err)
	batchErr := err.(BatchError)
	assert.Equal(t, ErrCodeRun, batchErr.Code())
	assert.T(t, strings.Contains(batchErr.Message(), "[9,12)"))
}

func TestRunEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ckpt")
	runner := NewRunner("empty", doubleItems).Build()

	result, err := runner.Invoke(context.Background(), []interface{}{}, map[string]interface{}{
		ParamChunkCount:     3,
		ParamCheckpointPath: path,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(result.Items))
	assert.Equal(t, nil, result.Metadata)
	assert.Equal(t, status.DONE, result.Execution.Phase)
	assert.Equal(t, 0, result.Execution.TotalChunks)

	_, statErr := os.Stat(path)
	assert.T(t, os.IsNotExist(statErr))
}

func TestRunCheckpointAndResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.ckpt")
	first := NewRunner("resumable", func(items []interface{}, params map[string]interface{}) ([]interface{}, error) {
		if items[0].(int) == 3 {
			return nil, NewBatchError(ErrCodeGeneral, "chunk rejected")
		}
		return stampItems(items), nil
	}).Build()

	result, err := first.Invoke(context.Background(), intItems(12), map[string]interface{}{
		ParamChunkCount:     4,
		ParamCheckpointPath: path,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, true, result.Execution.Degraded)
	assert.Equal(t, 10, len(result.Items))

	record, err := checkpoint.Load(nil, path)
	assert.Equal(t, nil, err)
	assert.Equal(t, result.Execution.RunID, record.RunID)
	assert.Equal(t, [][2]int{{0, 3}, {6, 9}, {9, 12}}, record.CompletedRanges)
	assert.Equal(t, 9, len(record.Items))
	assert.Equal(t, "v00", record.Items[0])

	var calls int32
	second := NewRunner("resumable", func(items []interface{}, params map[string]interface{}) ([]interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return stampItems(items), nil
	}).Build()

	result, err = second.Invoke(context.Background(), intItems(12), map[string]interface{}{
		ParamChunkCount:     4,
		ParamCheckpointPath: path,
		ParamResume:         true,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, int(atomic.LoadInt32(&calls)))

	expected := make([]interface{}, 12)
	for i := range expected {
		expected[i] = fmt.Sprintf("v%02d", i)
	}
	assert.Equal(t, expected, result.Items)

	execution := result.Execution
	assert.Equal(t, status.DONE, execution.Phase)
	assert.Equal(t, 3, execution.SkippedChunks)
	assert.Equal(t, 1, execution.CompletedChunks)
	assert.Equal(t, 0, execution.FailedChunks)
	assert.Equal(t, false, execution.Degraded)

	record, err = checkpoint.Load(nil, path)
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, len(record.CompletedRanges))
	assert.Equal(t, 12, len(record.Items))
}

type memStorage struct {
	files   map[string][]byte
	renames int
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (s *memStorage) Exists(fileName string) (bool, error) {
	_, ok := s.files[fileName]
	return ok, nil
}

func (s *memStorage) Open(fileName string) (io.ReadCloser, error) {
	data, ok := s.files[fileName]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Create(fileName string) (io.WriteCloser, error) {
	return &memFile{storage: s, name: fileName}, nil
}

func (s *memStorage) Rename(oldName, newName string) error {
	data, ok := s.files[oldName]
	if !ok {
		return os.ErrNotExist
	}
	delete(s.files, oldName)
	s.files[newName] = data
	s.renames++
	return nil
}

func (s *memStorage) Remove(fileName string) error {
	delete(s.files, fileName)
	return nil
}

type memFile struct {
	bytes.Buffer
	storage *memStorage
	name    string
}

func (f *memFile) Close() error {
	f.storage.files[f.name] = append([]byte(nil), f.Buffer.Bytes()...)
	return nil
}

func TestRunCheckpointStorageInjected(t *testing.T) {
	storage := newMemStorage()
	runner := NewRunner("memckpt", func(items []interface{}, params map[string]interface{}) ([]interface{}, error) {
		return stampItems(items), nil
	}).CheckpointStorage(storage).Build()

	result, err := runner.Invoke(context.Background(), intItems(6), map[string]interface{}{
		ParamChunkCount:     2,
		ParamCheckpointPath: "runs/{name}.ckpt",
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, len(result.Items))

	record, err := checkpoint.Load(storage, "runs/memckpt.ckpt")
	assert.Equal(t, nil, err)
	assert.Equal(t, result.Execution.RunID, record.RunID)
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}}, record.CompletedRanges)
	expected := make([]interface{}, 6)
	for i := range expected {
		expected[i] = fmt.Sprintf("v%02d", i)
	}
	assert.Equal(t, expected, record.Items)

	assert.T(t, storage.renames >= 2)
	_, tmpLeft := storage.files["runs/memckpt.ckpt.tmp"]
	assert.Equal(t, false, tmpLeft)
}

func TestRunReturnResultsDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noresults.ckpt")
	runner := NewRunner("noresults", doubleItems).Build()

	result, err := runner.Invoke(context.Background(), intItems(6), map[string]interface{}{
		ParamChunkCount:     2,
		ParamCheckpointPath: path,
		ParamReturnResults:  false,
	})
	assert.Equal(t, nil, err)
	assert.T(t, result.Items == nil)
	assert.Equal(t, status.DONE, result.Execution.Phase)

	record, err := checkpoint.Load(nil, path)
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, len(record.Items))
}

func TestRunMetadataPolicies(t *testing.T) {
	runner := NewRunner("meta", func(items []interface{}, params map[string]interface{}) ([]interface{}, interface{}, error) {
		return items, items[0], nil
	}).Build()

	result, err := runner.Invoke(context.Background(), intItems(6), map[string]interface{}{ParamChunkCount: 3})
	assert.Equal(t, nil, err)
	assert.Equal(t, []interface{}{0, 2, 4}, result.Metadata)

	result, err = runner.Invoke(context.Background(), intItems(6), map[string]interface{}{
		ParamChunkCount:          3,
		ParamPoolSize:            1,
		ParamMetadataMergePolicy: MergeOverride,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, result.Metadata)

	result, err = runner.Invoke(context.Background(), intItems(6), map[string]interface{}{
		ParamChunkCount:          3,
		ParamMetadataMergePolicy: MergeDiscard,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, result.Metadata)
}

type recordingRunListener struct {
	before    int
	after     int
	beforeErr BatchError
	afterErr  BatchError
	lastPhase status.RunPhase
}

func (l *recordingRunListener) BeforeRun(execution *RunExecution) BatchError {
	l.before++
	return l.beforeErr
}

func (l *recordingRunListener) AfterRun(execution *RunExecution) BatchError {
	l.after++
	l.lastPhase = execution.Phase
	return l.afterErr
}

type recordingChunkListener struct {
	chunks int
	failed int
}

func (l *recordingChunkListener) AfterChunk(execution *RunExecution, result *ChunkResult) {
	l.chunks++
}

func (l *recordingChunkListener) OnError(execution *RunExecution, result *ChunkResult, err BatchError) {
	l.failed++
}

type panickyReporter struct {
	total int
}

func (p *panickyReporter) OnStart(totalChunks int) {
	p.total = totalChunks
}

func (p *panickyReporter) OnChunkDone(rng IndexRange) {
	panic("reporter down")
}

func (p *panickyReporter) OnFinish() {}

func TestRunListeners(t *testing.T) {
	runListener := &recordingRunListener{}
	chunkListener := &recordingChunkListener{}
	reporter := &panickyReporter{}
	handler := &countingHandler{fail: failWhenFirst(2)}
	runner := NewRunner("listened", handler).
		Listener(runListener, chunkListener, reporter).
		Build()

	result, err := runner.Invoke(context.Background(), intItems(4), map[string]interface{}{ParamChunkCount: 2})
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(result.Items))

	assert.Equal(t, 1, runListener.before)
	assert.Equal(t, 1, runListener.after)
	assert.Equal(t, status.DONE, runListener.lastPhase)
	assert.Equal(t, 2, chunkListener.chunks)
	assert.Equal(t, 1, chunkListener.failed)
	assert.Equal(t, 2, reporter.total)
}

func TestRunListenerErrors(t *testing.T) {
	blocked := &recordingRunListener{beforeErr: NewBatchError(ErrCodeGeneral, "not ready")}
	handler := &countingHandler{}
	runner := NewRunner("blocked", handler).Listener(blocked).Build()

	result, err := runner.Invoke(context.Background(), intItems(4), nil)
	assert.Equal(t, (*RunResult)(nil), result)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, "not ready", err.(BatchError).Message())
	assert.Equal(t, 0, handler.count())
	assert.Equal(t, 1, blocked.after)

	degraded := &recordingRunListener{afterErr: NewBatchError(ErrCodeGeneral, "cleanup failed")}
	runner = NewRunner("cleanup", doubleItems).Listener(degraded).Build()

	result, err = runner.Invoke(context.Background(), intItems(4), nil)
	assert.Equal(t, (*RunResult)(nil), result)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, "cleanup failed", err.(BatchError).Message())
}
