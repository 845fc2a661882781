// Package logging constructs the zap loggers used across afk.
//
// Services receive a *zap.Logger and fall back to zap.NewNop() when none
// is provided, so this package is only needed at the edges: the CLI builds
// a real logger from configuration, tests use NewTestLogger to observe
// output.
//
// Log output goes to stderr. Stdout is reserved for the live agent
// transcript streamed by the driver.
package logging
