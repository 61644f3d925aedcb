package dupes

import (
	"context"
	"sync"
)

// hashResult is the outcome for one path in a bucket.
type hashResult struct {
	digest string
	ok     bool
}

// hashFunc computes the digest of one file.
type hashFunc func(path string) (string, error)

// hashAll runs fn over paths with at most workers goroutines. Each path is
// handled by exactly one worker, and results are written to the slot of the
// path's index, so the returned slice lines up with paths.
func hashAll(ctx context.Context, paths []string, workers int, fn hashFunc, onErr func(path string, err error)) []hashResult {
	results := make([]hashResult, len(paths))
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	work := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				d, err := fn(paths[idx])
				if err != nil {
					onErr(paths[idx], err)
					continue
				}
				results[idx] = hashResult{digest: d, ok: true}
			}
		}()
	}

feed:
	for idx := range paths {
		select {
		case work <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	return results
}
