package goroutine

import (
	"runtime"
	"testing"
	"time"
)

// AssertNoLeaks fails t if, once the test and its cleanups have run, more
// goroutines are alive than when AssertNoLeaks was called. Call it first in
// tests that start servers or pumps.
func AssertNoLeaks(t testing.TB) {
	t.Helper()
	baseline := runtime.NumGoroutine()
	t.Cleanup(func() {
		if settled(baseline, 5*time.Second) {
			return
		}
		n := runtime.NumGoroutine()
		buf := make([]byte, 1<<20)
		buf = buf[:runtime.Stack(buf, true)]
		t.Errorf("goroutine leak: %d running, baseline %d\n%s", n, baseline, buf)
	})
}

// settled polls until the goroutine count drops to at most want.
func settled(want int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if runtime.NumGoroutine() <= want {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
}
