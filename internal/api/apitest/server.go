// Package apitest runs an in-memory expenditure backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/talkcents/talkcents/internal/id"
	"github.com/talkcents/talkcents/internal/model"
)

// Request is one call the server received.
type Request struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
}

// Server is a fake backend rooted at BaseURL().
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	records  []model.Raw
	nextID   int
	token    string
	username string
	password string
	budget   float64
	failures map[string]int
	requests []Request

	omitID        bool
	sparse        bool
	audioResult   []model.Raw
	transcription string
}

// New starts a server and stops it when tb finishes.
func New(tb testing.TB) *Server {
	s := &Server{failures: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /expenditure", s.listAll)
	mux.HandleFunc("GET /expenditure/pending", s.listStatus(model.StatusPending))
	mux.HandleFunc("GET /expenditure/approved", s.listStatus(model.StatusApproved))
	mux.HandleFunc("GET /expenditure/date_filter", s.dateFilter)
	mux.HandleFunc("POST /expenditure", s.create)
	mux.HandleFunc("POST /expenditure/bulk", s.bulk)
	mux.HandleFunc("PATCH /expenditure/{id}", s.update)
	mux.HandleFunc("DELETE /expenditure/{id}", s.remove)
	mux.HandleFunc("PATCH /expenditure/approve/{id}", s.approveOne)
	mux.HandleFunc("POST /expenditure/approve", s.approveAll)
	mux.HandleFunc("POST /user/login", s.login)
	mux.HandleFunc("GET /user/me", s.me)
	mux.HandleFunc("GET /user/budget", s.getBudget)
	mux.HandleFunc("PUT /user/budget", s.putBudget)
	mux.HandleFunc("GET /insights/category-totals", s.categoryTotals)
	mux.HandleFunc("GET /insights/daily-totals", s.dailyTotals)
	mux.HandleFunc("POST /llm/chat", s.chat)
	mux.HandleFunc("POST /llm/audio-to-expenditure", s.audio)
	mux.HandleFunc("POST /llm/transcribe-audio/", s.transcribe)

	s.srv = httptest.NewServer(http.StripPrefix("/api", s.middleware(mux)))
	tb.Cleanup(s.srv.Close)
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api"
}

// RequireToken makes every call except login demand this bearer token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetCredentials sets the username and password login accepts.
func (s *Server) SetCredentials(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username, s.password = username, password
}

// Seed stores records with the given status. Records without an id,
// uuid or _id get an id assigned.
func (s *Server) Seed(status model.Status, raws ...model.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range raws {
		rec := clone(r)
		if recordID(rec) == "" {
			rec["id"] = s.newID()
		}
		rec["status"] = string(status)
		s.records = append(s.records, rec)
	}
}

// OmitIDOnCreate makes create responses carry no id.
func (s *Server) OmitIDOnCreate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitID = true
}

// SparseResponses makes create and update respond with only the id.
func (s *Server) SparseResponses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sparse = true
}

// SetAudioResult sets what the audio-to-expenditure endpoint returns.
func (s *Server) SetAudioResult(raws ...model.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioResult = raws
}

// SetTranscription sets what the transcribe-audio endpoint returns.
func (s *Server) SetTranscription(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcription = text
}

// Records returns a copy of everything stored.
func (s *Server) Records() []model.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Raw, len(s.records))
	for i, r := range s.records {
		out[i] = clone(r)
	}
	return out
}

// FailNext makes the next call to method+path answer with status.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many calls matched method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-ID"),
		})
		key := r.Method + " " + r.URL.Path
		status, fail := s.failures[key]
		delete(s.failures, key)
		token := s.token
		s.mu.Unlock()

		if fail {
			http.Error(w, fmt.Sprintf(`{"detail":"injected %d"}`, status), status)
			return
		}
		if token != "" && r.URL.Path != "/user/login" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) newID() string {
	s.nextID++
	return "srv-" + strconv.Itoa(s.nextID)
}

func (s *Server) listAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Records())
}

func (s *Server) listStatus(status model.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []model.Raw{}
		for _, r := range s.Records() {
			if r["status"] == string(status) {
				out = append(out, r)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) dateFilter(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date")
	out := []model.Raw{}
	for _, rec := range s.Records() {
		if day := dayOf(rec); day >= from && day <= to {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in model.Raw
	if !readJSON(w, r, &in) {
		return
	}
	rec := s.insert(in)
	writeJSON(w, http.StatusOK, s.respond(rec))
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	var in []model.Raw
	if !readJSON(w, r, &in) {
		return
	}
	out := make([]model.Raw, 0, len(in))
	for _, raw := range in {
		out = append(out, s.insert(raw))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) insert(in model.Raw) model.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := clone(in)
	rec["id"] = s.newID()
	if _, ok := rec["status"]; !ok {
		rec["status"] = string(model.StatusPending)
	}
	s.records = append(s.records, rec)
	return clone(rec)
}

func (s *Server) respond(rec model.Raw) model.Raw {
	s.mu.Lock()
	omitID, sparse := s.omitID, s.sparse
	s.mu.Unlock()

	switch {
	case omitID:
		out := clone(rec)
		delete(out, "id")
		return out
	case sparse:
		return model.Raw{"id": rec["id"]}
	}
	return rec
}

func (s *Server) find(id string) int {
	for i, r := range s.records {
		if recordID(r) == id {
			return i
		}
	}
	return -1
}

func recordID(r model.Raw) string {
	for _, k := range []string{"id", "uuid", "_id"} {
		if v, ok := r[k]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var in model.Raw
	if !readJSON(w, r, &in) {
		return
	}
	s.mu.Lock()
	i := s.find(r.PathValue("id"))
	if i < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Expenditure not found"})
		return
	}
	for k, v := range in {
		if k != "id" {
			s.records[i][k] = v
		}
	}
	rec := clone(s.records[i])
	sparse := s.sparse
	s.mu.Unlock()
	if sparse {
		rec = model.Raw{"id": rec["id"]}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(r.PathValue("id"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Expenditure not found"})
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) approveOne(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	i := s.find(r.PathValue("id"))
	if i < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Expenditure not found"})
		return
	}
	s.records[i]["status"] = string(model.StatusApproved)
	rec := clone(s.records[i])
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) approveAll(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	n := 0
	for _, r := range s.records {
		if r["status"] == string(model.StatusPending) {
			r["status"] = string(model.StatusApproved)
			n++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	s.mu.Lock()
	ok := in.Username == s.username && in.Password == s.password
	token := s.token
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}
	if token == "" {
		token = "token-" + in.Username
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	name := s.username
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"username": name})
}

func (s *Server) getBudget(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	b := s.budget
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, model.Budget{MonthlyBudget: b})
}

func (s *Server) putBudget(w http.ResponseWriter, r *http.Request) {
	var in model.Budget
	if !readJSON(w, r, &in) {
		return
	}
	s.mu.Lock()
	s.budget = in.MonthlyBudget
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) expensesBetween(r *http.Request) []model.Raw {
	from, to := r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date")
	var out []model.Raw
	for _, rec := range s.Records() {
		if rec["type"] == string(model.TypeIncome) {
			continue
		}
		day := dayOf(rec)
		if (from == "" || day >= from) && (to == "" || day <= to) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Server) categoryTotals(w http.ResponseWriter, r *http.Request) {
	totals := map[string]float64{}
	for _, rec := range s.expensesBetween(r) {
		totals[fmt.Sprint(rec["category"])] += number(rec["amount"])
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) dailyTotals(w http.ResponseWriter, r *http.Request) {
	totals := map[string]float64{}
	for _, rec := range s.expensesBetween(r) {
		day, err := id.ParseDayKey(dayOf(rec))
		if err != nil {
			continue
		}
		totals[id.FormatDayKey(day)] += number(rec["amount"])
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChatHistory []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"chat_history"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	reply := "Tell me about an expense."
	if n := len(in.ChatHistory); n > 0 {
		reply = "You said: " + in.ChatHistory[n-1].Content
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply, "expenditures": []model.Raw{}})
}

func (s *Server) audio(w http.ResponseWriter, r *http.Request) {
	if !readUpload(w, r) {
		return
	}
	s.mu.Lock()
	out := append([]model.Raw{}, s.audioResult...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	if !readUpload(w, r) {
		return
	}
	s.mu.Lock()
	text := s.transcription
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"transcription": text})
}

// readUpload drains the "file" part and checks it is m4a audio.
func readUpload(w http.ResponseWriter, r *http.Request) bool {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return false
	}
	defer file.Close()
	if ct := header.Header.Get("Content-Type"); ct != "audio/mp4" {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"detail": "unexpected " + ct})
		return false
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return false
	}
	return true
}

func dayOf(rec model.Raw) string {
	for _, k := range []string{"date_of_expense", "date"} {
		if s, ok := rec[k].(string); ok && len(s) >= 10 {
			return s[:10]
		}
	}
	return time.Now().UTC().Format("2006-01-02")
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func clone(r model.Raw) model.Raw {
	out := make(model.Raw, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func readJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
