// Package globaltime is the clock used for queue admission timestamps
// and credential lastUsedAt stamps, swappable in tests.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

// UTC is what callers should use; every persisted timestamp is UTC.
func UTC() time.Time {
	return Now().UTC()
}

// SetMockTime pins the clock. Pair with ResetTime in a defer.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
