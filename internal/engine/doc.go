// Package engine runs a goal against an inventory.
//
// Groups are visited in registry order and tasks in chain order. For each
// task every host of the group runs concurrently, bounded by MaxParallel,
// and the engine waits for all of them before evaluating. Any FAILED host
// result halts the run after that task; later tasks and groups are not
// started.
//
// Progress is reported as Events to an Observer, which may be called from
// several goroutines at once.
package engine
