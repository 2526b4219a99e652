package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forest-cover/internal/common"
	"forest-cover/internal/features"
)

// TreeNode is one node of a decision tree stored in pre-order. Internal nodes
// send a sample left when v[Feature] <= Threshold.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Class     int     `json:"class"`
}

type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// ensembleFile is the on-disk layout of a tree ensemble artifact.
type ensembleFile struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Features  []string  `json:"features"`
	Classes   []int     `json:"classes"`
	Trees     []Tree    `json:"trees"`
}

// Ensemble is a majority-vote forest of decision trees.
type Ensemble struct {
	trees    []Tree
	metadata ModelMetadata
}

// ParseEnsemble decodes and structurally checks a JSON tree ensemble.
func ParseEnsemble(data []byte) (*Ensemble, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("ensemble: empty artifact")
	}

	var f ensembleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ensemble: decode: %w", err)
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("ensemble: no trees")
	}
	for i, t := range f.Trees {
		if err := t.check(); err != nil {
			return nil, fmt.Errorf("ensemble: tree %d: %w", i, err)
		}
	}

	return &Ensemble{
		trees: f.Trees,
		metadata: ModelMetadata{
			Version:   f.Version,
			Format:    common.FormatEnsemble,
			Features:  f.Features,
			Classes:   f.Classes,
			TrainedAt: f.TrainedAt,
			Trees:     len(f.Trees),
		},
	}, nil
}

// check rejects trees that could index out of range or loop. Children must
// come after their parent, which pre-order layout guarantees.
func (t Tree) check() error {
	if len(t.Nodes) == 0 {
		return errors.New("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= features.VectorLen {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		for _, child := range [2]int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: child %d out of range", i, child)
			}
		}
	}
	return nil
}

func (t Tree) classify(v *features.FeatureVector) int {
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Class
		}
		if v[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Predict returns the class with the most votes; ties go to the lower code.
func (e *Ensemble) Predict(ctx context.Context, v features.FeatureVector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	votes := make(map[int]int, 8)
	for i := range e.trees {
		votes[e.trees[i].classify(&v)]++
	}

	best, bestVotes := 0, -1
	for class, n := range votes {
		if n > bestVotes || (n == bestVotes && class < best) {
			best, bestVotes = class, n
		}
	}
	return best, nil
}

func (e *Ensemble) Metadata() ModelMetadata { return e.metadata }

func (e *Ensemble) Close() error { return nil }
