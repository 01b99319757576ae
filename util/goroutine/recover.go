// Package goroutine holds helpers for running background work without letting
// a panic take the process down.
package goroutine

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// maxStackBytes caps the stack captured for a recovered panic.
const maxStackBytes = 8192

// Recover logs a panic raised in the calling goroutine. It must be deferred
// directly. A nil logger writes the report to stderr instead.
func Recover(name string, logger *zap.SugaredLogger) {
	r := recover()
	if r == nil {
		return
	}
	report(name, r, logger)
}

func report(name string, value any, logger *zap.SugaredLogger) {
	stack := make([]byte, maxStackBytes)
	stack = stack[:runtime.Stack(stack, false)]

	if logger == nil {
		fmt.Fprintf(os.Stderr, "panic in %s: %v\n%s\n", name, value, stack)
		return
	}
	logger.Errorw("Recovered panic in background task",
		"task", name,
		"panic", value,
		"stack", string(stack))
}

// Go runs fn in a new goroutine with panic recovery. If wg is not nil it is
// incremented before the goroutine starts and released when fn returns.
func Go(name string, logger *zap.SugaredLogger, wg *sync.WaitGroup, fn func()) {
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer Recover(name, logger)
		fn()
	}()
}
