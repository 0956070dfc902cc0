package errors

import (
	"fmt"
	"strings"
)

type ErrorCode int

const (
	InternalError ErrorCode = iota
	InvalidConfiguration
	InvalidPartitioning
	InvalidPlan
	InvalidPlanText
	UnboundedPipeline
	SchemaChanged
)

func NewInternalError(msg string) PlanError {
	return NewPlanErrorf(InternalError, "Internal error - %s", msg)
}

func NewInvalidConfigurationError(msg string) PlanError {
	return NewPlanErrorf(InvalidConfiguration, "Invalid configuration: %s", msg)
}

func NewInvalidPartitioningError(msg string) PlanError {
	return NewPlanErrorf(InvalidPartitioning, "Invalid partitioning: %s", msg)
}

func NewInvalidPlanError(operator string, msg string) PlanError {
	return NewPlanErrorf(InvalidPlan, "Invalid %s: %s", operator, msg)
}

func NewInvalidPlanTextError(msg string) PlanError {
	return NewPlanErrorf(InvalidPlanText, "Invalid plan text: %s", msg)
}

func NewUnboundedPipelineError(operator string, required string) PlanError {
	return NewPlanErrorf(UnboundedPipeline,
		"Cannot run pipeline: %s requires input ordering %s which its unbounded input does not provide", operator, required)
}

func NewUnboundedSortError(operator string) PlanError {
	return NewPlanErrorf(UnboundedPipeline,
		"Cannot run pipeline: %s has to read all of its unbounded input before it can produce output", operator)
}

func NewSchemaChangedError(ruleName string, before []string, after []string) PlanError {
	return NewPlanErrorf(SchemaChanged, "Rule %s changed the plan schema from [%s] to [%s]", ruleName,
		strings.Join(before, ", "), strings.Join(after, ", "))
}

func NewPlanErrorf(errorCode ErrorCode, msgFormat string, args ...interface{}) PlanError {
	msg := fmt.Sprintf(fmt.Sprintf("PLN%04d - %s", errorCode, msgFormat), args...)
	return PlanError{Code: errorCode, Msg: msg}
}

func NewPlanError(errorCode ErrorCode, msg string) PlanError {
	return PlanError{Code: errorCode, Msg: msg}
}

// PlanError is any kind of error that is reported back to whoever asked for a plan to be optimized, e.g. the CLI
type PlanError struct {
	Code ErrorCode
	Msg  string
}

func (p PlanError) Error() string {
	return p.Msg
}

// HasCode returns true if err, or any error it wraps, is a PlanError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe PlanError
	if As(err, &pe) {
		return pe.Code == code
	}
	return false
}
