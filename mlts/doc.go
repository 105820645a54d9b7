// Package mlts implements the miner's session security layer: an
// RSA-OAEP key exchange used to hand a peer a Fernet-compatible
// symmetric key (with handshake nonces checked against a replay
// window), and the decrypt/encrypt operations built on top of it.
//
// The wire format is deliberately Fernet-compatible (AES-128-CBC +
// HMAC-SHA256, base64url, embedded timestamp) so that a peer using the
// Python cryptography.fernet.Fernet implementation interoperates with
// this node without modification.
package mlts
