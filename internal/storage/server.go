package storage

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
)

// Error codes from the store's v2 wire protocol. The client adapter keys
// its outcome classification off these.
const (
	ErrCodeKeyNotFound   = 100
	ErrCodeCompareFailed = 101
)

// wireError is the JSON error body the v2 keys API returns
type wireError struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
	Cause     string `json:"cause,omitempty"`
}

// wireNode is the node object embedded in successful v2 responses
type wireNode struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// wireResponse is the JSON body of a successful v2 keys response
type wireResponse struct {
	Action string   `json:"action"`
	Node   wireNode `json:"node"`
}

// Server exposes a RegisterStore over the store's v2 keys HTTP API
// (GET/PUT /v2/keys/<key>, with prevValue for compare-and-swap). It exists
// so adapter and harness tests can run against a wire-faithful in-process
// cluster: several Servers sharing one RegisterStore behave like a healthy
// linearizable deployment.
//
// SetReachable(false) makes the server hold every request open until the
// client gives up, which is how tests simulate a node cut off by a
// partition: the client observes timeouts, not refusals.
type Server struct {
	store       *RegisterStore
	unreachable atomic.Bool
}

// NewServer creates a server over the given store
func NewServer(store *RegisterStore) *Server {
	return &Server{store: store}
}

// SetReachable controls whether the server answers requests. While
// unreachable, requests block until their context is done.
func (s *Server) SetReachable(reachable bool) {
	s.unreachable.Store(!reachable)
}

// ServeHTTP implements the v2 keys API surface the client adapter consumes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.unreachable.Load() {
		// Swallow the request like a severed link would
		<-r.Context().Done()
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v2/keys/")
	if key == "" || key == r.URL.Path {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, key)
	case http.MethodPut:
		s.handlePut(w, r, key)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, key string) {
	value, err := s.store.Get(key)
	if err != nil {
		writeJSON(w, http.StatusNotFound, wireError{
			ErrorCode: ErrCodeKeyNotFound,
			Message:   "Key not found",
			Cause:     "/" + key,
		})
		return
	}
	writeJSON(w, http.StatusOK, wireResponse{
		Action: "get",
		Node:   wireNode{Key: "/" + key, Value: value},
	})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, key string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	value := r.PostForm.Get("value")

	// prevValue present means compare-and-swap, otherwise a plain set
	if prev, ok := r.PostForm["prevValue"]; ok {
		err := s.store.CompareAndSwap(key, prev[0], value)
		switch err {
		case nil:
			writeJSON(w, http.StatusOK, wireResponse{
				Action: "compareAndSwap",
				Node:   wireNode{Key: "/" + key, Value: value},
			})
		case ErrKeyNotFound:
			writeJSON(w, http.StatusNotFound, wireError{
				ErrorCode: ErrCodeKeyNotFound,
				Message:   "Key not found",
				Cause:     "/" + key,
			})
		case ErrCompareFailed:
			writeJSON(w, http.StatusPreconditionFailed, wireError{
				ErrorCode: ErrCodeCompareFailed,
				Message:   "Compare failed",
				Cause:     "[" + prev[0] + " != " + value + "]",
			})
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := s.store.Set(key, value); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wireResponse{
		Action: "set",
		Node:   wireNode{Key: "/" + key, Value: value},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
