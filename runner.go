package parbatch

import (
	"context"
	"fmt"
	"github.com/oklog/ulid/v2"
	"github.com/parbatch/parbatch/checkpoint"
	"github.com/parbatch/parbatch/status"
	"github.com/parbatch/parbatch/util"
	"github.com/parbatch/parbatch/validate"
	"sync"
	"time"
)

type runnerBuilder struct {
	name           string
	processor      Processor
	arguments      []validate.Argument
	runListeners   []RunListener
	chunkListeners []ChunkListener
	reporters      []ProgressReporter
	storage        checkpoint.FileStorage
}

//NewRunner new instance of runner builder wrapping a function for parallel
//execution over chunks of a collection
func NewRunner(name string, handler ...interface{}) *runnerBuilder {
	if name == "" {
		panic("runner name must not be empty")
	}
	builder := &runnerBuilder{
		name: name,
	}
	for _, h := range handler {
		builder.Handler(h)
	}
	return builder
}

//Handler set the wrapped function
func (builder *runnerBuilder) Handler(handler interface{}) *runnerBuilder {
	switch h := handler.(type) {
	case Processor:
		builder.processor = h
	case func(items []interface{}, params map[string]interface{}) ([]interface{}, interface{}, error):
		builder.processor = ProcessFunc(h)
	case func(items []interface{}, params map[string]interface{}) ([]interface{}, error):
		builder.processor = SimpleProcessFunc(h)
	default:
		panic(fmt.Sprintf("not supported handler:%+v for runner:%v", h, builder.name))
	}
	return builder
}

//Validate declare rules for params of the wrapped function, checked together
//with the engine's own option rules before anything is dispatched
func (builder *runnerBuilder) Validate(args ...validate.Argument) *runnerBuilder {
	builder.arguments = append(builder.arguments, args...)
	return builder
}

//Listener register listeners, either RunListener, ChunkListener or ProgressReporter
func (builder *runnerBuilder) Listener(listener ...interface{}) *runnerBuilder {
	for _, l := range listener {
		switch ll := l.(type) {
		case RunListener:
			builder.runListeners = append(builder.runListeners, ll)
		case ChunkListener:
			builder.chunkListeners = append(builder.chunkListeners, ll)
		case ProgressReporter:
			builder.reporters = append(builder.reporters, ll)
		default:
			panic(fmt.Sprintf("not supported listener:%+v for runner:%v", ll, builder.name))
		}
	}
	return builder
}

//CheckpointStorage set the storage backend for checkpoint files, default is
//the local filesystem
func (builder *runnerBuilder) CheckpointStorage(storage checkpoint.FileStorage) *runnerBuilder {
	builder.storage = storage
	return builder
}

//Build construct the runner
func (builder *runnerBuilder) Build() *Runner {
	if builder.processor == nil {
		panic(fmt.Sprintf("no handler for runner:%v", builder.name))
	}
	return &Runner{
		name:           builder.name,
		processor:      builder.processor,
		arguments:      builder.arguments,
		runListeners:   builder.runListeners,
		chunkListeners: builder.chunkListeners,
		reporters:      builder.reporters,
		storage:        builder.storage,
		active:         map[string]bool{},
	}
}

//Runner a named wrapper executing a function in parallel over chunks of an
//input collection. A Runner is immutable after Build and safe for concurrent
//invocations, runs with identical params are rejected while one is in flight.
type Runner struct {
	name           string
	processor      Processor
	arguments      []validate.Argument
	runListeners   []RunListener
	chunkListeners []ChunkListener
	reporters      []ProgressReporter
	storage        checkpoint.FileStorage

	mu     sync.Mutex
	active map[string]bool
}

//Name the runner name
func (r *Runner) Name() string {
	return r.name
}

func (r *Runner) signature() string {
	return fmt.Sprintf("%s(items, params)", r.name)
}

func (r *Runner) markActive(key string) bool {
	if key == "" {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[key] {
		return false
	}
	r.active[key] = true
	return true
}

func (r *Runner) release(key string) {
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key)
}

//RunResult outcome of one finished run
type RunResult struct {
	Items     []interface{}
	Metadata  interface{}
	Execution *RunExecution
}

//Invoke execute the wrapped function over items and wait for the outcome
func (r *Runner) Invoke(ctx context.Context, items interface{}, params map[string]interface{}) (*RunResult, error) {
	handle, err := r.InvokeAsync(ctx, items, params)
	if err != nil {
		return nil, err
	}
	return handle.Wait()
}

//InvokeAsync submit the run to the shared run pool and return a handle to it
func (r *Runner) InvokeAsync(ctx context.Context, items interface{}, params map[string]interface{}) (*RunHandle, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	execution := &RunExecution{
		RunID:      runIDOf(params),
		RunKey:     runKeyOf(params),
		RunName:    r.name,
		RunParams:  params,
		Phase:      status.VALIDATING,
		RunContext: NewBatchContext(),
		CreateTime: time.Now(),
	}
	runCtx, cancel := context.WithCancel(ctx)
	future := runPool.Submit(runCtx, func() (interface{}, error) {
		return r.execute(runCtx, execution, items, params)
	})
	logger.Info(ctx, "run submitted, runName:%v, runId:%v", r.name, execution.RunID)
	return &RunHandle{execution: execution, future: future, cancel: cancel}, nil
}

func runIDOf(params map[string]interface{}) string {
	if id, ok := params[ParamRunId].(string); ok && id != "" {
		return id
	}
	return ulid.Make().String()
}

//runKeyOf fingerprint of the caller params, empty when params hold values JSON
//can not encode, in which case the duplicate-run guard is skipped
func runKeyOf(params map[string]interface{}) string {
	str, err := util.JsonString(params)
	if err != nil {
		return ""
	}
	return util.MD5(str)
}

//RunHandle handle of a submitted run
type RunHandle struct {
	execution *RunExecution
	future    Future
	cancel    context.CancelFunc
}

//Execution the live run state, written by the run goroutine
func (h *RunHandle) Execution() *RunExecution {
	return h.execution
}

//Wait block until the run finishes and return its outcome
func (h *RunHandle) Wait() (*RunResult, error) {
	result, err := h.future.Get()
	h.cancel()
	run, _ := result.(*RunResult)
	return run, err
}

//Stop request a cooperative stop. No further chunks are submitted, in-flight
//chunks finish and reach the checkpoint, then the run ends with phase STOPPED.
func (h *RunHandle) Stop() {
	h.cancel()
}
