// Package s3 mirrors cluster artifacts to S3-compatible object storage.
//
// It is used for the admin kubeconfig and the worker join command so that a
// second control machine can run later goals without copying the local
// inventory directory around.
package s3
