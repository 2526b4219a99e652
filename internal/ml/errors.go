package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrieval matches every *RetrievalError.
	ErrRetrieval = errors.New("model retrieval failed")
	// ErrPrediction matches every *PredictionError.
	ErrPrediction = errors.New("prediction failed")
	// ErrUnexpectedClass is returned for a class code outside 1..7.
	ErrUnexpectedClass = errors.New("unexpected class code")
	// ErrColumnMismatch means the artifact was trained on a different column layout.
	ErrColumnMismatch = errors.New("artifact column layout does not match encoder")
)

// RetrievalError is a failure to obtain a usable model handle. Once returned
// by a Gateway it is permanent for the process.
type RetrievalError struct {
	Source string
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve model from %s: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

// PredictionError is a failure of a single predict call. The loaded handle
// stays usable.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

func (e *PredictionError) Is(target error) bool { return target == ErrPrediction }
