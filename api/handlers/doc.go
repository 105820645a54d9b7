// Package handlers implements the miner's public HTTP surface: the
// MLTS handshake (public-key, key-exchange), the challenge endpoint,
// and the availability probe.
package handlers
