// Package service implements deck submission and the read-side status
// projection on top of the task store.
//
// Submission stages the uploaded files, records a pending task, and emits a
// request event; it returns as soon as the record exists. Reads enforce
// ownership: a requester only ever sees their own tasks.
package service
