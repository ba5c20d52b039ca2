// Package api exposes deck submission and task status over HTTP. Handlers
// translate multipart uploads and path parameters into DeckService calls and
// map service errors to status codes without leaking internal details.
package api
