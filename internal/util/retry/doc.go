// Package retry provides exponential backoff for transient failures.
//
// [Do] retries an operation according to a [Policy]. It is used when
// opening SSH connections to hosts that may still be booting. Errors
// wrapped with [Fatal] stop the loop immediately.
package retry
