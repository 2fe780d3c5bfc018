package imageprocessing

import (
	"runtime"
	"sync"
)

// parallelRows runs fn(y) for every y in [0, n) on up to GOMAXPROCS workers.
// Rows are handed out by striding so each worker touches disjoint destination pixels.
func parallelRows(n int, fn func(y int)) {
	if n <= 0 {
		return
	}
	workers := min(runtime.GOMAXPROCS(0), n)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(offset int) {
			defer wg.Done()
			for y := offset; y < n; y += workers {
				fn(y)
			}
		}(w)
	}
	wg.Wait()
}
