package processor

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"webpify/pkg/imgutil"
)

// Run discovers raster images under root and converts them concurrently.
// Outcomes are folded into stats as they complete and returned sorted by
// path. Progress is streamed to updates when it is non-nil.
func Run(ctx context.Context, root string, conv *Converter, stats *Stats, updates chan<- ProgressUpdate) (Summary, []Outcome, error) {
	var outcomes []Outcome
	var failures []Failure

	jobs := make(chan Job)
	results := make(chan Result)

	workers := runtime.NumCPU()
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, conv, stats, updates)
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			out := res.Outcome
			outcomes = append(outcomes, out)
			if out.Kind == OutcomeError {
				failures = append(failures, Failure{Path: out.Path, Err: out.Err})
			}
			if updates == nil {
				continue
			}
			update := ProgressUpdate{ProcessedDelta: 1, BytesSavedDelta: out.Saved()}
			switch out.Kind {
			case OutcomeSmaller:
				update.SmallerDelta = 1
			case OutcomeLargerSkipped, OutcomeAlreadyExists:
				update.SkippedDelta = 1
			case OutcomeError:
				update.ErrorDelta = 1
			}
			updates <- update
		}
	}()

	producerErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		producerErr <- Walk(ctx, root, imgutil.RasterExts, func(job Job) error {
			select {
			case jobs <- job:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Path < outcomes[j].Path })
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })

	summary := stats.Snapshot()
	summary.Failures = failures

	if err := <-producerErr; err != nil {
		return summary, outcomes, err
	}
	if err := ctx.Err(); err != nil {
		return summary, outcomes, err
	}
	return summary, outcomes, nil
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- Result, conv *Converter, stats *Stats, updates chan<- ProgressUpdate) {
	for job := range jobs {
		if ctx.Err() != nil {
			continue
		}
		if updates != nil {
			updates <- ProgressUpdate{TotalDelta: 1}
		}

		out := conv.Convert(ctx, job.Path)
		stats.Record(out)
		results <- Result{Job: job, Outcome: out}
	}
}
