package parbatch

import (
	"fmt"
	"github.com/parbatch/parbatch/validate"
	"gopkg.in/yaml.v3"
	"os"
)

//parameter keys recognized by the engine, any other key passes through to the
//wrapped function untouched
const (
	ParamChunkCount          = "chunkCount"
	ParamChunkSize           = "chunkSize"
	ParamPoolSize            = "poolSize"
	ParamCheckpointPath      = "checkpointPath"
	ParamCheckpointInterval  = "checkpointInterval"
	ParamReturnResults       = "returnResults"
	ParamMetadataMergePolicy = "metadataMergePolicy"
	ParamStrict              = "strict"
	ParamShowProgress        = "showProgress"
	ParamResume              = "resume"
	ParamRunId               = "runId"
)

//metadata merge policies
const (
	MergeConcatenate = "concatenate"
	MergeOverride    = "override"
	MergeDiscard     = "discard"
)

const (
	DefaultPoolSize           = 8
	DefaultCheckpointInterval = 1
)

type runConfig struct {
	chunkCount         int
	chunkSize          int
	poolSize           int
	checkpointPath     string
	checkpointInterval int
	returnResults      bool
	mergePolicy        string
	strict             bool
	showProgress       bool
	resume             bool
	runID              string
}

//optionArguments descriptors for the engine parameter keys, validated in the
//same report as the wrapped function's own arguments
func optionArguments() []validate.Argument {
	return []validate.Argument{
		validate.Arg(ParamChunkCount).OfKind(validate.Int),
		validate.Arg(ParamChunkSize).OfKind(validate.Int),
		validate.Arg(ParamPoolSize).OfKind(validate.Int),
		validate.Arg(ParamCheckpointPath).OfKind(validate.String),
		validate.Arg(ParamCheckpointInterval).OfKind(validate.Int),
		validate.Arg(ParamReturnResults).OfKind(validate.Bool),
		validate.Arg(ParamMetadataMergePolicy).In(MergeConcatenate, MergeOverride, MergeDiscard),
		validate.Arg(ParamStrict).OfKind(validate.Bool),
		validate.Arg(ParamShowProgress).OfKind(validate.Bool),
		validate.Arg(ParamResume).OfKind(validate.Bool),
		validate.Arg(ParamRunId).OfKind(validate.String),
	}
}

//optionViolations structural checks not expressible as per-argument rules
func optionViolations(params map[string]interface{}) []validate.Violation {
	var violations []validate.Violation
	ctx := NewBatchContextOf(params)
	if ctx.Exists(ParamChunkCount) && ctx.Exists(ParamChunkSize) {
		violations = append(violations, validate.Violation{
			Name:    ParamChunkCount,
			Message: fmt.Sprintf("%s: mutually exclusive with %s", ParamChunkCount, ParamChunkSize),
		})
	}
	for _, key := range []string{ParamChunkCount, ParamChunkSize, ParamPoolSize, ParamCheckpointInterval} {
		if !ctx.Exists(key) {
			continue
		}
		if n, err := ctx.GetInt(key); err == nil && n <= 0 {
			violations = append(violations, validate.Violation{
				Name:    key,
				Message: fmt.Sprintf("%s: %d is not positive", key, n),
			})
		}
	}
	return violations
}

//parseRunConfig read the engine keys into a runConfig, applying defaults.
//Arguments are assumed validated, conversion failures map to validation errors
//all the same.
func parseRunConfig(params map[string]interface{}) (*runConfig, BatchError) {
	ctx := NewBatchContextOf(params)
	cfg := &runConfig{}
	var err error
	if cfg.chunkCount, err = ctx.GetInt(ParamChunkCount, 0); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamChunkCount, err)
	}
	if cfg.chunkSize, err = ctx.GetInt(ParamChunkSize, 0); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamChunkSize, err)
	}
	if cfg.poolSize, err = ctx.GetInt(ParamPoolSize, DefaultPoolSize); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamPoolSize, err)
	}
	if cfg.checkpointPath, err = ctx.GetString(ParamCheckpointPath, ""); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamCheckpointPath, err)
	}
	if cfg.checkpointInterval, err = ctx.GetInt(ParamCheckpointInterval, DefaultCheckpointInterval); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamCheckpointInterval, err)
	}
	if cfg.returnResults, err = ctx.GetBool(ParamReturnResults, true); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamReturnResults, err)
	}
	if cfg.mergePolicy, err = ctx.GetString(ParamMetadataMergePolicy, MergeConcatenate); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamMetadataMergePolicy, err)
	}
	if cfg.strict, err = ctx.GetBool(ParamStrict, false); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamStrict, err)
	}
	if cfg.showProgress, err = ctx.GetBool(ParamShowProgress, false); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamShowProgress, err)
	}
	if cfg.resume, err = ctx.GetBool(ParamResume, false); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamResume, err)
	}
	if cfg.runID, err = ctx.GetString(ParamRunId, ""); err != nil {
		return nil, NewBatchError(ErrCodeValidation, "invalid %s", ParamRunId, err)
	}
	return cfg, nil
}

//resolveChunkCount effective number of chunks for n items
func (cfg *runConfig) resolveChunkCount(n int) int {
	if cfg.chunkCount > 0 {
		return cfg.chunkCount
	}
	if cfg.chunkSize > 0 {
		return (n + cfg.chunkSize - 1) / cfg.chunkSize
	}
	return cfg.poolSize
}

//effectiveConfig resolved config snapshot carried inside checkpoint records
func (cfg *runConfig) effectiveConfig(totalItems, chunkCount int) map[string]interface{} {
	snapshot := map[string]interface{}{}
	snapshot["totalItems"] = totalItems
	snapshot[ParamChunkCount] = chunkCount
	snapshot[ParamPoolSize] = cfg.poolSize
	snapshot[ParamCheckpointPath] = cfg.checkpointPath
	snapshot[ParamCheckpointInterval] = cfg.checkpointInterval
	snapshot[ParamReturnResults] = cfg.returnResults
	snapshot[ParamMetadataMergePolicy] = cfg.mergePolicy
	snapshot[ParamStrict] = cfg.strict
	return snapshot
}

//ParamsFromFile load a params mapping from a YAML or JSON file
func ParamsFromFile(path string) (map[string]interface{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{}
	if err = yaml.Unmarshal(content, &params); err != nil {
		return nil, fmt.Errorf("parse params file %s: %v", path, err)
	}
	return params, nil
}
