// Package minio stores template grids in MinIO or any S3-compatible service
// (Ceph, Garage, SeaweedFS) through the MinIO Go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "templates", "phoenix/")
//	lib, err := template.Load(ctx, store, []string{"b", "r", "z"})
//
// Dial builds the client from an endpoint and static credentials in one step.
package minio
