package ml

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ArtifactFunc returns the raw bytes of a serialized model. accept decodes
// candidate bytes; a source that caches must keep only bytes accept
// approved. Sources without a cache may ignore it.
type ArtifactFunc func(ctx context.Context, accept func([]byte) error) ([]byte, error)

// ArtifactLoader fetches an artifact, decodes it in the given format and
// checks its declared column layout. Every failure is a *RetrievalError
// tagged with source.
func ArtifactLoader(source, format string, fetch ArtifactFunc, opts DecodeOptions) Loader {
	return func(ctx context.Context) (Model, error) {
		var model Model
		accept := func(data []byte) error {
			m, err := decodeChecked(format, data, opts, source)
			if err != nil {
				return err
			}
			if model != nil {
				model.Close()
			}
			model = m
			return nil
		}

		data, err := fetch(ctx, accept)
		if err == nil && model == nil {
			err = accept(data)
		}
		if err != nil {
			if model != nil {
				model.Close()
			}
			var re *RetrievalError
			if errors.As(err, &re) {
				return nil, err
			}
			return nil, &RetrievalError{Source: source, Err: err}
		}
		return sourcedModel{Model: model, source: source}, nil
	}
}

func decodeChecked(format string, data []byte, opts DecodeOptions, source string) (Model, error) {
	model, err := Decode(format, data, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s artifact: %w", format, err)
	}
	if err := checkColumns(model, source); err != nil {
		model.Close()
		return nil, err
	}
	return model, nil
}

func checkColumns(model Model, source string) error {
	md := model.Metadata()
	if err := md.VerifyColumns(); err != nil {
		return &RetrievalError{Source: source, Err: err}
	}
	if !md.ColumnsDeclared() {
		log.Warn().Str("source", source).Msg("artifact does not declare its columns; layout unverified")
	}
	return nil
}

type sourcedModel struct {
	Model
	source string
}

func (m sourcedModel) Metadata() ModelMetadata {
	md := m.Model.Metadata()
	md.Source = m.source
	return md
}

func (m sourcedModel) Unwrap() Model { return m.Model }
