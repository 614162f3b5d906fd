package test

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/etaoni/qci"
	"github.com/go-chi/chi/v5"
)

// Request is a request received by Server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// Filename and File are the uploaded multipart file, if any.
	Filename string
	File     []byte
}

// Server is an in-memory QCI API that records every request it receives.
type Server struct {
	*httptest.Server

	Tests    []qci.TestSummary
	Profiles []qci.TestProductProfile
	PDF      []byte
	Report   []byte

	mu       sync.Mutex
	requests []Request
	uploads  int
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		Tests: []qci.TestSummary{
			{
				DataPackageID:  "DP_1",
				AccessionID:    "DM-1",
				ApplicationURL: "https://variants.ingenuity.com/vcs/view/analysis/DP_1",
				ExportURL:      "https://api.ingenuity.com/v1/export/DP_1",
				State:          "final",
				ReceivedDate:   "2023-11-20",
			},
		},
		Profiles: []qci.TestProductProfile{
			{"id": "TPP_1", "name": "Somatic Cancer"},
		},
		PDF:    SamplePDF,
		Report: []byte(SampleReportXML),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// Requests returns the requests received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/v1/oauth/access_token", s.accessToken)
	r.Group(func(r chi.Router) {
		r.Use(authorize)
		r.Post("/v1/datapackages", s.upload)
		r.Get("/v1/datapackages/{id}", s.status)
		r.Post("/v1/datapackages/{id}/users", s.share)
		r.Get("/v1/export/{id}", s.export)
		r.Get("/v1/clinical", s.list)
		r.Get("/v1/testProductProfiles", s.profiles)
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		req := Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		}
		if f, h, err := r.FormFile("file"); err == nil {
			req.Filename = h.Filename
			req.File, _ = io.ReadAll(f)
			_ = f.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+AccessToken && r.URL.Query().Get("access_token") != AccessToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("grant_type") != "client_credentials" || q.Get("client_id") != ClientID || q.Get("client_secret") != ClientSecret {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{"access_token": AccessToken, "token_type": "bearer", "expires_in": 3600})
}

type uploadedDataPackage struct {
	PrimaryID string `xml:"PrimaryId"`
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	f, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()
	var pkg uploadedDataPackage
	if err := xml.NewDecoder(f).Decode(&pkg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.uploads++
	id := fmt.Sprintf("DP_%d", s.uploads)
	s.mu.Unlock()
	writeJSON(w, NewSubmissionStatus(id, pkg.PrimaryID))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, NewSubmissionStatus(id, id))
}

func (s *Server) share(w http.ResponseWriter, r *http.Request) {
	var users []qci.User
	if err := json.NewDecoder(r.Body).Decode(&users); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "shared %s with %d users", chi.URLParam(r, "id"), len(users))
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("view") {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(s.PDF)
	case "reportXml":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write(s.Report)
	default:
		http.Error(w, "unknown view", http.StatusBadRequest)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Tests)
}

func (s *Server) profiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Profiles)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
