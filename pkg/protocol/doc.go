// Package protocol owns the LW3 wire contract and parsing primitives.
//
// Ownership boundary:
// - response model (node/property/method/error and multi-line results)
// - line classification and parsing
// - frame reading and splitting
// - command line encoding
//
// Everything here is pure except ReadFrame, which pulls bytes from a
// FrameSource and never writes.
package protocol
