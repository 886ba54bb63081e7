// Package store defines the persistence contract for investments.
// Backends live under internal/platform and must honor the batch size
// limit and the error sentinels declared here so that the pipeline can
// tell retryable failures from fatal ones.
package store
