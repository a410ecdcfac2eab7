// Package s3 stores template grids in Amazon S3.
//
//	store, err := s3.New(ctx, "spectral-templates",
//	    s3.WithPrefix("phoenix-v2/"),
//	    s3.WithRegion("us-east-1"),
//	)
//	lib, err := template.Load(ctx, store, []string{"b", "r", "z"})
//
// Reads use ranged GetObject requests; writes go through the SDK's managed
// uploader, which switches to multipart uploads for large grids.
package s3
