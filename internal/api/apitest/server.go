// Package apitest runs an in-process fake of the management API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// Token is the only session token the fake server accepts.
const Token = "test-session-token"

// Site is a fake site with its environments.
type Site struct {
	ID           string
	Name         string
	Frozen       bool
	Environments []string
}

// WorkflowRequest records a workflow creation call.
type WorkflowRequest struct {
	SiteID string
	Env    string
	Type   string
	Params json.RawMessage
}

// WorkflowScript controls how created workflows progress.
type WorkflowScript struct {
	// PendingPolls is how many refreshes report the workflow as still running.
	PendingPolls      int
	Result            string
	ActiveDescription string
	FailureReason     string
}

// Server is a fake management API backed by httptest.
type Server struct {
	*httptest.Server

	mu               sync.Mutex
	sites            map[string]*Site
	workflows        map[string]*fakeWorkflow
	script           WorkflowScript
	requests         []string
	workflowRequests []WorkflowRequest
}

type fakeWorkflow struct {
	siteID string
	attrs  map[string]interface{}
	polls  int
}

// NewServer starts a fake API. Callers must Close it.
func NewServer(sites ...Site) *Server {
	s := &Server{
		sites:     make(map[string]*Site),
		workflows: make(map[string]*fakeWorkflow),
		script: WorkflowScript{
			Result:            "succeeded",
			ActiveDescription: "Sync code on dev",
		},
	}
	for i := range sites {
		site := sites[i]
		s.sites[site.Name] = &site
	}

	router := mux.NewRouter()
	registerRoutes(router.PathPrefix("/api").Subrouter(), s)
	s.Server = httptest.NewServer(s.recordingMiddleware(authMiddleware(router)))
	return s
}

// BaseURL is the value to use as the client base URL.
func (s *Server) BaseURL() string {
	return s.URL + "/api/"
}

// SetWorkflowScript changes how workflows created from now on behave.
func (s *Server) SetWorkflowScript(script WorkflowScript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

// Requests returns "METHOD /path" for every request received, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// WorkflowRequests returns every workflow creation call received.
func (s *Server) WorkflowRequests() []WorkflowRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WorkflowRequest(nil), s.workflowRequests...)
}

func registerRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/site-names/{name}", s.handleSiteName).Methods(http.MethodGet)
	r.HandleFunc("/sites/{siteID}", s.handleSite).Methods(http.MethodGet)
	r.HandleFunc("/sites/{siteID}/environments", s.handleEnvironments).Methods(http.MethodGet)
	r.HandleFunc("/sites/{siteID}/environments/{env}/workflows", s.handleCreateWorkflow).Methods(http.MethodPost)
	r.HandleFunc("/sites/{siteID}/workflows/{workflowID}", s.handleGetWorkflow).Methods(http.MethodGet)
}

func (s *Server) recordingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) siteByID(id string) *Site {
	for _, site := range s.sites {
		if site.ID == id {
			return site
		}
	}
	return nil
}

func (s *Server) handleSiteName(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[mux.Vars(r)["name"]]
	if !ok {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": site.ID, "name": site.Name})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site := s.siteByID(mux.Vars(r)["siteID"])
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     site.ID,
		"name":   site.Name,
		"frozen": site.Frozen,
	})
}

func (s *Server) handleEnvironments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site := s.siteByID(mux.Vars(r)["siteID"])
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	envs := make(map[string]interface{}, len(site.Environments))
	for _, env := range site.Environments {
		envs[env] = map[string]string{"id": env}
	}
	writeJSON(w, http.StatusOK, envs)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body struct {
		Type   string          `json:"type"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.siteByID(vars["siteID"]) == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	s.workflowRequests = append(s.workflowRequests, WorkflowRequest{
		SiteID: vars["siteID"],
		Env:    vars["env"],
		Type:   body.Type,
		Params: body.Params,
	})

	id := fmt.Sprintf("wf-%d", len(s.workflows)+1)
	wf := &fakeWorkflow{
		siteID: vars["siteID"],
		attrs: map[string]interface{}{
			"id":          id,
			"type":        body.Type,
			"description": fmt.Sprintf("Sync code on %q", vars["env"]),
			"result":      nil,
			"finished_at": nil,
		},
	}
	s.workflows[id] = wf
	writeJSON(w, http.StatusOK, wf.attrs)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[vars["workflowID"]]
	if !ok || wf.siteID != vars["siteID"] {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	wf.polls++
	if wf.polls > s.script.PendingPolls {
		wf.attrs["result"] = s.script.Result
		wf.attrs["finished_at"] = 1700000000.5
		wf.attrs["active_description"] = s.script.ActiveDescription
		if s.script.Result != "succeeded" {
			wf.attrs["final_task"] = map[string]interface{}{
				"reason": s.script.FailureReason,
			}
		}
	}
	writeJSON(w, http.StatusOK, wf.attrs)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	errorResponse := map[string]interface{}{
		"error": message,
	}
	if len(details) > 0 {
		errorResponse["details"] = strings.Join(details, "; ")
	}
	writeJSON(w, status, errorResponse)
}
