// Package generation defines the capability boundary between the deck
// orchestrator and the remote slide-deck generation service.
//
// The orchestrator only ever talks to a Client through its six operations:
// create a workspace, add sources, request an artifact, await it, download
// it, and close the session. Concrete adapters (see internal/platform/gemini)
// absorb every remote-specific response shape behind this contract, so tests
// can substitute a fake with programmable delays and failures.
package generation
