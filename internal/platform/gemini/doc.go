// Package gemini implements generation.Connector on top of Google's Gemini API.
//
// A workspace is a client-side grouping of files uploaded through the Gemini
// Files API. Generation asks the model for a structured slide outline
// (JSON constrained by a response schema) grounded on those files, and the
// downloaded artifact is that outline rendered to PDF with go-pdf/fpdf.
//
// Every remote call goes through the remoteAPI interface so the adapter can be
// exercised in tests without network access.
package gemini
