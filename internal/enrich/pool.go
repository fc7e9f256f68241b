package enrich

import (
	"context"
	"sync"
)

// runParallel applies fn to slots [0, n) with at most workers goroutines.
// The result slice is pre-sized and each worker writes only the slot it
// claimed, so no synchronization is needed on the output. workers <= 1
// runs inline, which keeps rate-limit pacing strictly sequential.
func runParallel(ctx context.Context, n, workers int, fn func(slot int) map[string]any) []map[string]any {
	results := make([]map[string]any, n)
	if n == 0 {
		return results
	}

	if workers <= 1 {
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				break
			}
			results[i] = fn(i)
		}
		return results
	}

	if workers > n {
		workers = n
	}

	slots := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range slots {
				results[i] = fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		slots <- i
	}
	close(slots)
	wg.Wait()

	return results
}
