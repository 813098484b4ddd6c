// Package client is the LW3 transaction engine.
//
// A Client owns one connection and runs at most one command/response round
// trip on it at a time. LW3 frames carry no request identifier, so replies
// are matched to commands purely by stream order; callers queue for the
// connection in arrival order and are admitted first come, first served.
//
// Each operation is bounded by a timeout covering the wait for the
// connection as well as the round trip itself. A round trip abandoned after
// its command was written leaves a reply in flight; the next caller discards
// that stale frame before sending its own command.
package client
