// Package cftest provides an in-memory stand-in for the Cloudflare DNS
// records API.
package cftest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/edgeprobe/edgedns/utils/cloudflarecontrol"
)

type Server struct {
	*httptest.Server

	Token  string
	ZoneID string

	lock    sync.Mutex
	nextID  int
	records []cloudflarecontrol.DNSRecord
	calls   []string

	// FailList makes every listing fail with a 400 api error.
	FailList bool
	// FailCreate makes creates for the given contents fail.
	FailCreate map[string]bool
	// FailDelete makes deletes for the given record ids fail.
	FailDelete map[string]bool
}

func NewServer(token, zoneID string) *Server {
	s := &Server{
		Token:      token,
		ZoneID:     zoneID,
		FailCreate: map[string]bool{},
		FailDelete: map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Seed adds an existing record and returns its id.
func (s *Server) Seed(record cloudflarecontrol.DNSRecord) string {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.nextID++
	record.ID = fmt.Sprintf("rec-%d", s.nextID)
	s.records = append(s.records, record)
	return record.ID
}

// Records returns a snapshot of the stored records.
func (s *Server) Records() []cloudflarecontrol.DNSRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]cloudflarecontrol.DNSRecord(nil), s.records...)
}

// Calls returns the mutating calls received, in order, as
// "POST <content>" and "DELETE <id>" strings.  Listings appear as "GET".
func (s *Server) Calls() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]string(nil), s.calls...)
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success":  false,
		"errors":   []errorDetail{{Code: code, Message: message}},
		"messages": []string{},
		"result":   nil,
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeError(w, http.StatusForbidden, 10000, "Authentication error")
		return
	}

	if r.URL.Path == "/user/tokens/verify" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"errors":   []errorDetail{},
			"messages": []string{},
			"result":   map[string]string{"id": "token-id", "status": "active"},
		})
		return
	}

	prefix := "/zones/" + s.ZoneID + "/dns_records"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusNotFound, 7003, "Could not route to "+r.URL.Path)
		return
	}
	recordID := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	s.lock.Lock()
	defer s.lock.Unlock()

	switch {
	case r.Method == http.MethodGet && recordID == "":
		s.calls = append(s.calls, "GET")
		s.handleList(w, r)
	case r.Method == http.MethodPost && recordID == "":
		s.handleCreate(w, r)
	case r.Method == http.MethodDelete && recordID != "":
		s.calls = append(s.calls, "DELETE "+recordID)
		s.handleDelete(w, recordID)
	default:
		writeError(w, http.StatusMethodNotAllowed, 10405, "Method not allowed")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.FailList {
		writeError(w, http.StatusBadRequest, 9999, "listing disabled")
		return
	}

	q := r.URL.Query()
	name := q.Get("name")
	recType := q.Get("type")

	var matched []cloudflarecontrol.DNSRecord
	for _, record := range s.records {
		if name != "" && record.Name != name {
			continue
		}
		if recType != "" && record.Type != recType {
			continue
		}
		matched = append(matched, record)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = 100
	}

	totalPages := (len(matched) + perPage - 1) / perPage
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	pageRecords := matched[start:end]
	if pageRecords == nil {
		pageRecords = []cloudflarecontrol.DNSRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"errors":   []errorDetail{},
		"messages": []string{},
		"result":   pageRecords,
		"result_info": map[string]int{
			"page":        page,
			"per_page":    perPage,
			"count":       len(pageRecords),
			"total_count": len(matched),
			"total_pages": totalPages,
		},
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req cloudflarecontrol.CreateDNSRecordRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, 9207, "Request body is invalid")
		return
	}

	s.calls = append(s.calls, "POST "+req.Content)

	if s.FailCreate[req.Content] {
		writeError(w, http.StatusBadRequest, 81057, "Record rejected")
		return
	}

	for _, record := range s.records {
		if record.Name == req.Name && record.Type == req.Type && record.Content == req.Content {
			writeError(w, http.StatusBadRequest, 81057, "Record already exists.")
			return
		}
	}

	s.nextID++
	record := cloudflarecontrol.DNSRecord{
		ID:      fmt.Sprintf("rec-%d", s.nextID),
		Type:    req.Type,
		Name:    req.Name,
		Content: req.Content,
		TTL:     req.TTL,
		Proxied: req.Proxied,
	}
	s.records = append(s.records, record)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"errors":   []errorDetail{},
		"messages": []string{},
		"result":   record,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, recordID string) {
	if s.FailDelete[recordID] {
		writeError(w, http.StatusBadRequest, 1000, "Delete rejected")
		return
	}

	for idx, record := range s.records {
		if record.ID == recordID {
			s.records = append(s.records[:idx], s.records[idx+1:]...)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success":  true,
				"errors":   []errorDetail{},
				"messages": []string{},
				"result":   map[string]string{"id": recordID},
			})
			return
		}
	}

	writeError(w, http.StatusNotFound, 81044, "Record does not exist.")
}
