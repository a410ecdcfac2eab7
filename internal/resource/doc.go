// Package resource bounds the memory, concurrency and IO used while loading
// template libraries.
//
//	┌──────────────────────────────────────────────────────┐
//	│                     Controller                       │
//	├─────────────────┬─────────────────┬──────────────────┤
//	│  Memory budget  │  Load slots     │  IO rate limiter │
//	│  (fail-fast)    │  (semaphore)    │  (token bucket)  │
//	├─────────────────┼─────────────────┼──────────────────┤
//	│  TryAcquire-    │  AcquireLoad    │  AcquireIO       │
//	│  Memory         │  ReleaseLoad    │  RateLimited-    │
//	│  ReleaseMemory  │                 │  Reader          │
//	└─────────────────┴─────────────────┴──────────────────┘
//
// The interpolated-template cache reserves memory with TryAcquireMemory and
// simply skips caching when the budget is exhausted. Remote template blobs are
// read through a RateLimitedReader so that a large preload cannot saturate a
// shared link:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   512 << 20,
//	    IOLimitBytesPerSec: 64 << 20,
//	    MaxConcurrentLoads: 4,
//	})
//
// All methods are safe for concurrent use, and a nil *Controller is a valid
// controller that imposes no limits.
package resource
