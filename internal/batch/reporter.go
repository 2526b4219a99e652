package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// Results summarizes one batch run.
type Results struct {
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Rows      int            `json:"rows"`
	Predicted int            `json:"predicted"`
	Failed    int            `json:"failed"`
	Classes   map[string]int `json:"classes"`
}

func (r *Results) record(label string) {
	r.Predicted++
	r.Classes[label]++
}

func (r *Results) finish() *Results {
	r.EndTime = time.Now()
	return r
}

// WriteJSON writes the results to path.
func (r *Results) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// PrintSummary writes a human-readable summary to w.
func (r *Results) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n=== BATCH SUMMARY ===\n")
	fmt.Fprintf(w, "Rows:      %d\n", r.Rows)
	fmt.Fprintf(w, "Predicted: %d\n", r.Predicted)
	fmt.Fprintf(w, "Failed:    %d\n", r.Failed)
	fmt.Fprintf(w, "Duration:  %s\n", r.EndTime.Sub(r.StartTime).Round(time.Millisecond))

	if len(r.Classes) == 0 {
		return
	}

	labels := make([]string, 0, len(r.Classes))
	for label := range r.Classes {
		labels = append(labels, label)
	}
	// most frequent first
	sort.Slice(labels, func(i, j int) bool {
		if r.Classes[labels[i]] != r.Classes[labels[j]] {
			return r.Classes[labels[i]] > r.Classes[labels[j]]
		}
		return labels[i] < labels[j]
	})

	fmt.Fprintf(w, "\nCLASS DISTRIBUTION\n")
	for _, label := range labels {
		n := r.Classes[label]
		fmt.Fprintf(w, "%-18s %6d (%.1f%%)\n", label, n, float64(n)/float64(r.Predicted)*100)
	}
}
