package executils

import (
	"runtime"
	"sync"

	"go.uber.org/atomic"
)

type ParallelOption struct {
	// Below Threshold values fn runs inline on the calling goroutine.
	Threshold int
	// Step is how many values a worker claims at once.
	Step int
}

// ParallelExec applies fn to every value exactly once and returns when all
// calls are done. Large inputs are split across NumCPU workers that claim
// Step sized chunks from a shared cursor.
func ParallelExec[T any](vals []T, opt ParallelOption, fn func(T)) {
	if opt.Step <= 0 {
		opt.Step = 1
	}
	if len(vals) < opt.Threshold || len(vals) <= opt.Step {
		for _, v := range vals {
			fn(v)
		}
		return
	}

	var (
		cursor  = atomic.NewUint64(0)
		end     = uint64(len(vals))
		step    = uint64(opt.Step)
		workers = runtime.NumCPU()
	)
	if chunks := (len(vals) + opt.Step - 1) / opt.Step; chunks < workers {
		workers = chunks
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				n := cursor.Add(step)
				if n-step >= end {
					return
				}
				for i := n - step; i < n && i < end; i++ {
					fn(vals[i])
				}
			}
		}()
	}
	wg.Wait()
}
