// Package gcs publishes deck artifacts to a Google Cloud Storage bucket.
package gcs
