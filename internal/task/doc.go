// Package task runs deck generation in the background.
//
// DeckGenerationTask is the stage orchestrator: it drives one run through
// workspace creation, source upload, generation, download and publication,
// persisting progress after every stage and always ending in a terminal
// status. TaskRunner executes submitted tasks on independent goroutines with
// a concurrency limit, and Reconciler fails records left non-terminal by a
// run that died without reporting.
package task
