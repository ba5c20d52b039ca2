// Package events decouples task submission from task execution.
//
// The service emits a DeckRequested after the pending record is persisted
// and its sources are staged; a handler registered with the emitter turns it
// into a runnable task and hands it to the runner. Neither side imports the
// other.
package events
