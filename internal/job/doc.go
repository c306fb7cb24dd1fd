// Package job runs persistent background jobs on a fixed pool of workers.
//
// Jobs are saved before they are queued so that a restart can pick them up
// again: Runner.Start recovers pending and interrupted jobs through registered
// Factory implementations, and a monitor requeues jobs stuck in processing.
package job
