// Package mocks provides shared test doubles for the deck generation pipeline.
//
// MockTaskStore keeps task records in memory and applies updates through the
// same domain rules as the Postgres store, recording every state a task
// passes through. FakeConnector and FakeClient stand in for the remote
// generation service with programmable failures and delays. MockPublisher
// and MockJWTService follow the function-field pattern: set XxxFn to
// override a method, or the plain fields for canned results.
//
//	store := mocks.NewMockTaskStore()
//	connector := &mocks.FakeConnector{Template: mocks.FakeClient{AwaitBlocks: true}}
package mocks
