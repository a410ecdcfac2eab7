// Package blobstore abstracts where template grid files live.
//
// A template library is a set of immutable blobs, one per instrument arm
// (e.g. "b.spft", "r.spft"). They can be kept on local disk (memory-mapped),
// in memory for tests, or in object storage:
//
//   - LocalStore: local filesystem with mmap reads
//   - MemoryStore: in-process map, for tests and generated grids
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Implementations must be safe for concurrent use.
package blobstore
