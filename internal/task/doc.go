// Package task defines the unit of work the engine schedules and the result
// model every task reports through.
//
// A [Task] runs against one host and returns a [Result] with one of five
// statuses. Tasks that consist of several dependent sub-steps compose them
// with [Sequence], which stops at the first failing [Step]. Cross-cutting
// behaviour such as panic recovery and start/end logging is layered on with
// [Middleware] rather than written into each task.
package task
