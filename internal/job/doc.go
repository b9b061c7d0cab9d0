// Package job defines the per-file unit of work: the immutable Spec handed to
// the pipeline, the Result it returns, and the skip policy that decides
// whether a file needs processing at all.
package job
