// Package domain defines the deck generation task record, its status and
// stage vocabulary, and the transition rules every store must enforce.
package domain
