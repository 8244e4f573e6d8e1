package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// JSON-RPC 2.0 error codes. Codes above -32000 are reserved by the
// protocol; the rest map the service error kinds.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
	rpcNotFound       = -32001
	rpcConflict       = -32002
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "engine.list":
		result = map[string]interface{}{"engines": s.listEngines()}
	case "engine.evaluate":
		var params struct {
			Engine string    `json:"engine"`
			Inputs []float64 `json:"inputs"`
		}
		if err = decodeParams(request.Params, &params); err == nil {
			result, err = s.evaluate(params.Engine, params.Inputs)
		}
	case "optimization.start":
		var params optimizeRequest
		if err = decodeParams(request.Params, &params); err == nil {
			result, err = s.rpcStart(params)
		}
	case "optimization.status":
		var params idParams
		if err = decodeParams(request.Params, &params); err == nil {
			result, err = s.status(r.Context(), params.OptimizationID)
		}
	case "optimization.cancel":
		var params idParams
		if err = decodeParams(request.Params, &params); err == nil {
			if err = s.cancel(r.Context(), params.OptimizationID); err == nil {
				result = map[string]string{"status": "cancellation requested"}
			}
		}
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.metrics.RequestError(errors.KindOf(err).String())
		s.respondWithErrorData(w, rpcCode(err), rpcMessage(err), err.Error(), request.ID)
		return
	}

	s.respondJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: request.ID, Result: result})
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
}

func (s *Server) rpcStart(req optimizeRequest) (interface{}, error) {
	run, err := s.startRun(req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"optimization_id": run.ID,
		"status":          run.Status,
	}, nil
}

// decodeParams accepts params given by name or as a single-element array
// holding the object.
func decodeParams(raw json.RawMessage, dst interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errors.InvalidInputf("missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 {
			return errors.InvalidInputf("params must be an object or a one-element array")
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.InvalidInputf("invalid params: %v", err)
	}
	return nil
}

func rpcCode(err error) int {
	switch errors.KindOf(err) {
	case errors.KindConfiguration, errors.KindInvalidInput:
		return rpcInvalidParams
	case errors.KindNotFound:
		return rpcNotFound
	case errors.KindConflict:
		return rpcConflict
	default:
		return rpcServerError
	}
}

func rpcMessage(err error) string {
	switch rpcCode(err) {
	case rpcInvalidParams:
		return "Invalid params"
	case rpcNotFound:
		return "Not found"
	case rpcConflict:
		return "Conflict"
	default:
		return "Server error"
	}
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.respondWithErrorData(w, code, message, "", id)
}

func (s *Server) respondWithErrorData(w http.ResponseWriter, code int, message, data string, id interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
		"data":    data,
	})

	// JSON-RPC errors travel in a 200 response
	s.respondJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}
