//go:build e2e

// Package e2e provides end-to-end tests for the playout delay
// implementation.
//
// These tests are isolated from the standard test suite via build tags.
// The browser tests require Chrome (auto-downloaded by Rod if not
// present) and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// E2E tests use:
//   - Rod for browser automation (Chrome DevTools Protocol)
//   - the audio-interop server for WebRTC signaling
//   - BrowserClient from pkg/playout/testutil for Chrome helpers
//   - a pure pion-to-pion loopback that needs no browser at all
//
// Test isolation:
// Each test starts its own server on a random port and launches
// its own browser instance. Tests can run in parallel.
package e2e
