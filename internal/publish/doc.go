// Package publish makes finished deck artifacts externally resolvable.
// A Publisher takes the local file produced by a run and returns the stable
// locator stored as the task's result URL.
package publish
