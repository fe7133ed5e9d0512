package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Warning records a degraded optional sub-call inside an aggregated metric.
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// MetricResult is the merged outcome of one metric. Partial is set when
// optional sub-calls were degraded to their fallbacks.
type MetricResult struct {
	Data     map[string]any `json:"data"`
	Warnings []Warning      `json:"warnings,omitempty"`
	Partial  bool           `json:"partial,omitempty"`
}

func NewMetricResult(data map[string]any, warnings []Warning) MetricResult {
	return MetricResult{
		Data:     data,
		Warnings: warnings,
		Partial:  len(warnings) > 0,
	}
}

// SubCall is one independent upstream call inside an aggregated metric,
// declared with its merge policy up front. Required calls propagate failure
// to the whole metric; optional calls degrade to Fallback with a warning.
// A nil Fallback on an optional call omits the portion from the result.
type SubCall struct {
	Name     string
	Optional bool
	Fallback any
	Run      func(ctx context.Context) (any, error)
}

type Outcome struct {
	Name     string
	Optional bool
	Fallback any
	Value    any
	Err      error
}

// FanOut executes all sub-calls concurrently, bounded by maxConcurrent. A
// sub-call's failure is recorded in its outcome and never cancels siblings.
// Outcomes preserve the declaration order of calls.
func FanOut(ctx context.Context, calls []SubCall, maxConcurrent int) []Outcome {
	outcomes := make([]Outcome, len(calls))

	var g errgroup.Group
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}

	for i, call := range calls {
		g.Go(func() error {
			value, err := call.Run(ctx)

			outcomes[i] = Outcome{
				Name:     call.Name,
				Optional: call.Optional,
				Fallback: call.Fallback,
				Value:    value,
				Err:      err,
			}

			return nil
		})
	}

	g.Wait()

	return outcomes
}

// Reduce merges outcomes under the declared required/optional policy. The
// metric fails only if a required outcome failed; failed optional outcomes
// are substituted with their fallback and recorded as warnings.
func Reduce(outcomes []Outcome) (map[string]any, []Warning, error) {
	data := make(map[string]any, len(outcomes))
	var warnings []Warning

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			if !outcome.Optional {
				return nil, nil, fmt.Errorf("required call %q failed: %w", outcome.Name, outcome.Err)
			}

			warnings = append(warnings, Warning{Source: outcome.Name, Message: outcome.Err.Error()})

			if outcome.Fallback != nil {
				data[outcome.Name] = outcome.Fallback
			}

			continue
		}

		data[outcome.Name] = outcome.Value
	}

	return data, warnings, nil
}

type EnrichOutcome[T any, R any] struct {
	Item   T
	Detail R
	Err    error
}

// EnrichEach runs a per-entity enrichment call for every item with bounded
// concurrency. Enrichment failures are isolated per item; callers decide
// whether a failed item is degraded or dropped.
func EnrichEach[T any, R any](ctx context.Context, items []T, maxConcurrent int, fn func(ctx context.Context, item T) (R, error)) []EnrichOutcome[T, R] {
	outcomes := make([]EnrichOutcome[T, R], len(items))

	var g errgroup.Group
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}

	for i, item := range items {
		g.Go(func() error {
			detail, err := fn(ctx, item)

			outcomes[i] = EnrichOutcome[T, R]{Item: item, Detail: detail, Err: err}

			return nil
		})
	}

	g.Wait()

	return outcomes
}

// MergeSortedByTime combines record lists from multiple sources into one
// list ordered by the timestamp key descending, with the id key as a stable
// tie-break so repeated merges of the same inputs are reproducible.
func MergeSortedByTime(lists [][]map[string]any, timeKey, idKey string) []map[string]any {
	total := 0
	for _, list := range lists {
		total += len(list)
	}

	merged := make([]map[string]any, 0, total)
	for _, list := range lists {
		merged = append(merged, list...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		ti, tj := recordTime(merged[i], timeKey), recordTime(merged[j], timeKey)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}

		return recordID(merged[i], idKey) < recordID(merged[j], idKey)
	})

	return merged
}

func recordTime(record map[string]any, key string) time.Time {
	switch v := record[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}

	return time.Time{}
}

func recordID(record map[string]any, key string) string {
	return fmt.Sprint(record[key])
}
