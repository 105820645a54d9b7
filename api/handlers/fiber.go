package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/apierr"
	"github.com/loosh-ai/miner-core/mlts"
	"github.com/loosh-ai/miner-core/pipeline"
	"github.com/loosh-ai/miner-core/readiness"
)

// Fiber serves the MLTS handshake and challenge endpoints, composing
// the session layer and admission pipeline exactly as the challenge
// flow requires: decrypt, run inference, re-encrypt. Its wire format
// follows the reference fiber protocol literally — hex-encoded
// handshake bodies, header-addressed challenges, raw ciphertext over
// the wire — not a JSON reinterpretation of it.
type Fiber struct {
	session     *mlts.Server
	pipe        *pipeline.Pipeline
	gate        *readiness.Gate
	nodeAddress string
	logger      *zap.Logger
}

// NewFiber builds the handshake/challenge handler group. nodeAddress
// is the node's stable public address, echoed back on every challenge
// response.
func NewFiber(session *mlts.Server, pipe *pipeline.Pipeline, gate *readiness.Gate, nodeAddress string, logger *zap.Logger) *Fiber {
	return &Fiber{session: session, pipe: pipe, gate: gate, nodeAddress: nodeAddress, logger: logger}
}

// Register wires the four HTTP surfaces onto mux.
func (f *Fiber) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /fiber/public-key", f.handlePublicKey)
	mux.HandleFunc("POST /fiber/key-exchange", f.handleKeyExchange)
	mux.HandleFunc("POST /fiber/challenge", f.handleChallenge)
	mux.HandleFunc("GET /availability", f.handleAvailability)
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

func (f *Fiber) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	pem, err := f.session.PublicKeyPEM()
	if err != nil {
		WriteError(w, apierr.Wrap(apierr.Internal, "failed to export public key", err), f.logger)
		return
	}
	WriteJSON(w, http.StatusOK, publicKeyResponse{PublicKey: pem})
}

// keyExchangeRequest mirrors the reference KeyExchangeRequest model
// literally: the wrapped key travels hex-encoded, not base64.
type keyExchangeRequest struct {
	EncryptedSymmetricKey string  `json:"encrypted_symmetric_key"`
	SymmetricKeyUUID      string  `json:"symmetric_key_uuid"`
	Timestamp             float64 `json:"timestamp"`
	Nonce                 string  `json:"nonce"`
	Signature             string  `json:"signature"`
	ValidatorHotkeySS58   string  `json:"validator_hotkey_ss58"`
}

// keyExchangeResponse is written at the top level, not wrapped in the
// generic success envelope: the wire contract is exactly
// {success, message}.
type keyExchangeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (f *Fiber) handleKeyExchange(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, f.logger) {
		return
	}
	var req keyExchangeRequest
	if DecodeJSONBody(w, r, &req, f.logger) != nil {
		return
	}
	if req.EncryptedSymmetricKey == "" || req.SymmetricKeyUUID == "" || req.Nonce == "" || req.ValidatorHotkeySS58 == "" {
		WriteError(w, apierr.New(apierr.BadEnvelope, "encrypted_symmetric_key, symmetric_key_uuid, nonce, and validator_hotkey_ss58 are required"), f.logger)
		return
	}

	if err := f.session.Exchange(mlts.PeerID(req.ValidatorHotkeySS58), req.SymmetricKeyUUID, req.EncryptedSymmetricKey, req.Timestamp, req.Nonce, req.Signature); err != nil {
		WriteError(w, err, f.logger)
		return
	}

	WriteJSON(w, http.StatusOK, keyExchangeResponse{Success: true, Message: "symmetric key exchanged"})
}

// handleChallenge reads the validator identity off headers (never the
// body) and the encrypted payload as raw bytes, then responds with
// raw ciphertext bytes — the whole exchange is binary, not JSON.
func (f *Fiber) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if !f.gate.Ready() {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"available": false, "reason": "Miner initializing"})
		return
	}

	peer := r.Header.Get("x-fiber-validator-hotkey-ss58")
	uuid := r.Header.Get("x-fiber-symmetric-key-uuid")
	if peer == "" || uuid == "" {
		WriteError(w, apierr.New(apierr.BadEnvelope, "x-fiber-validator-hotkey-ss58 and x-fiber-symmetric-key-uuid headers are required"), f.logger)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		WriteError(w, apierr.Wrap(apierr.BadEnvelope, "failed to read challenge body", err), f.logger)
		return
	}

	ciphertext, err := f.pipe.Submit(r.Context(), mlts.PeerID(peer), uuid, string(body))
	if err != nil {
		WriteError(w, err, f.logger)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("x-fiber-symmetric-key-uuid", uuid)
	w.Header().Set("x-fiber-miner-hotkey-ss58", f.nodeAddress)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ciphertext))
}

func (f *Fiber) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if f.pipe == nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"available": false, "error": "admission pipeline not initialized"})
		return
	}
	if !f.gate.Ready() {
		WriteJSON(w, http.StatusOK, map[string]any{"available": false, "reason": "Miner initializing"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"available": true})
}
