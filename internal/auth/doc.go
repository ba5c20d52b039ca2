// Package auth verifies and mints the bearer tokens that identify requesters.
// Token issuance for end users is handled elsewhere; the API only needs the
// verified user ID from the "uid" claim.
package auth
