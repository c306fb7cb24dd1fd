// Package events decouples the code that asks for background work from the
// code that performs it.
//
// Services emit a JobRequestEvent through an EventEmitter; handlers registered
// with the emitter turn those requests into jobs. The task service uses this to
// request plan regeneration without importing the job runner.
package events
