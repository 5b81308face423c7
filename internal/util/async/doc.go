// Package async runs independent operations concurrently with a bound on
// how many are in flight.
//
// [ForEach] is used by the engine to fan a task out across the hosts of a
// group and wait for all of them before the results are evaluated.
package async
