package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/copyleftdev/anneal/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// rpcError pairs a JSON-RPC code with the message sent to the client.
type rpcError struct {
	code    int
	message string
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		rerr   *rpcError
	)
	switch request.Method {
	case "anneal.start":
		result, rerr = s.rpcStart(request.Params)
	case "anneal.status":
		result, rerr = s.rpcStatus(r, request.Params)
	case "anneal.cancel":
		result, rerr = s.rpcCancel(request.Params)
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID)
		return
	}

	if rerr != nil {
		s.respondWithError(w, rerr.code, rerr.message, request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams unmarshals the first positional parameter into v.
func decodeParams(params []json.RawMessage, v interface{}) *rpcError {
	if len(params) == 0 {
		return &rpcError{rpcInvalidParams, "missing required parameters"}
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return &rpcError{rpcInvalidParams, "invalid parameter format, expected object"}
	}
	return nil
}

// serverError maps a service error to a JSON-RPC error. Client mistakes are
// reported as invalid params.
func serverError(err error) *rpcError {
	if apperrors.Code(err) < http.StatusInternalServerError {
		return &rpcError{rpcInvalidParams, err.Error()}
	}
	return &rpcError{rpcServerError, "Server error"}
}

// rpcStart handles anneal.start.
// Params: [{"objective": "rastrigin", "dim": 2, "schedule": "cauchy"}]
// Returns: {"id": "...", "state": "pending"}
func (s *Server) rpcStart(params []json.RawMessage) (interface{}, *rpcError) {
	var req JobRequest
	if rerr := decodeParams(params, &req); rerr != nil {
		return nil, rerr
	}
	id, err := s.Start(req)
	if err != nil {
		return nil, serverError(err)
	}
	return map[string]string{"id": id, "state": StatePending}, nil
}

// rpcStatus handles anneal.status.
// Params: [{"id": "..."}]
func (s *Server) rpcStatus(r *http.Request, params []json.RawMessage) (interface{}, *rpcError) {
	var p idParams
	if rerr := decodeParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if err := p.validate(); err != nil {
		return nil, &rpcError{rpcInvalidParams, err.Error()}
	}
	resp, err := s.Status(r.Context(), p.ID)
	if err != nil {
		return nil, serverError(err)
	}
	return resp, nil
}

// rpcCancel handles anneal.cancel.
// Params: [{"id": "..."}]
func (s *Server) rpcCancel(params []json.RawMessage) (interface{}, *rpcError) {
	var p idParams
	if rerr := decodeParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if err := p.validate(); err != nil {
		return nil, &rpcError{rpcInvalidParams, err.Error()}
	}
	if err := s.Cancel(p.ID); err != nil {
		return nil, serverError(err)
	}
	return map[string]string{"status": "cancellation requested"}, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
