// Package sorter runs the card-sorting loop.
//
// A Sorter owns a single worker goroutine that repeats feed, identify, route, dispense
// and count until it is stopped or the feed path faults twice in a row. All mutable state
// (running flag, counters, criteria, last card) lives in the Sorter behind one mutex, so the
// control surface can call Start, Stop, SubmitCriteria and Status concurrently.
package sorter
