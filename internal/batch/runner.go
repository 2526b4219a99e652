package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"forest-cover/internal/features"
	"forest-cover/internal/ml"

	"github.com/rs/zerolog/log"
)

// Predictor is the part of ml.Gateway the batch runner needs.
type Predictor interface {
	Predict(ctx context.Context, obs features.RawObservation) (ml.Prediction, error)
}

// PredictHeader is the header of the prediction output.
var PredictHeader = []string{"line", "code", "label", "error"}

// Predict classifies every row of r and writes line, code, label and error
// columns to w. Invalid rows and failed predictions are recorded and
// skipped; a model that cannot be retrieved aborts the run.
func Predict(ctx context.Context, p Predictor, r *Reader, w io.Writer) (*Results, error) {
	out := csv.NewWriter(w)
	defer out.Flush()
	if err := out.Write(PredictHeader); err != nil {
		return nil, err
	}

	results := newResults()
	for {
		if err := ctx.Err(); err != nil {
			return results.finish(), err
		}

		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !IsRowError(err) {
			return results.finish(), fmt.Errorf("failed to read CSV: %w", err)
		}

		results.Rows++
		if err == nil {
			var pred ml.Prediction
			pred, err = p.Predict(ctx, row.Observation)
			if errors.Is(err, ml.ErrRetrieval) {
				return results.finish(), err
			}
			if err == nil {
				results.record(pred.Label)
				if werr := out.Write([]string{strconv.Itoa(row.Line), strconv.Itoa(pred.Code), pred.Label, ""}); werr != nil {
					return results.finish(), werr
				}
				continue
			}
		}

		results.Failed++
		log.Debug().Err(err).Int("line", row.Line).Msg("row skipped")
		if werr := out.Write([]string{strconv.Itoa(row.Line), "", "", err.Error()}); werr != nil {
			return results.finish(), werr
		}
	}

	out.Flush()
	return results.finish(), out.Error()
}

// Encode writes the feature vector of every row of r to w under the
// canonical column header. The first invalid row aborts the run.
func Encode(r *Reader, w io.Writer) (*Results, error) {
	out := csv.NewWriter(w)
	defer out.Flush()
	if err := out.Write(features.Columns[:]); err != nil {
		return nil, err
	}

	results := newResults()
	record := make([]string, features.VectorLen)
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return results.finish(), err
		}
		if err := row.Observation.Validate(); err != nil {
			return results.finish(), fmt.Errorf("line %d: %w", row.Line, err)
		}

		v := features.Encode(row.Observation)
		for i, x := range v {
			record[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		if err := out.Write(record); err != nil {
			return results.finish(), err
		}
		results.Rows++
	}

	out.Flush()
	return results.finish(), out.Error()
}

func newResults() *Results {
	return &Results{StartTime: time.Now(), Classes: make(map[string]int)}
}
