package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scholar-cli/internal/fields"
	"github.com/sells-group/scholar-cli/internal/publication"
	"github.com/sells-group/scholar-cli/internal/researcher"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

var mergeStatuses = map[string]bool{
	researcher.CandidatePending:   true,
	researcher.CandidateApproved:  true,
	researcher.CandidateCompleted: true,
	researcher.CandidateRejected:  true,
}

// ResearcherDetail is the body of GET /api/researchers/{id}.
type ResearcherDetail struct {
	*researcher.Record
	ReputationComponents json.RawMessage         `json:"reputation_components,omitempty"`
	Identifiers          []researcher.Identifier `json:"identifiers"`
	Expertise            []fields.Expertise      `json:"expertise"`
}

// ReputationView is the body of GET /api/researchers/{id}/reputation.
type ReputationView struct {
	ResearcherID  int64           `json:"researcher_id"`
	DisplayName   string          `json:"display_name"`
	Score         *float64        `json:"reputation_score"`
	Components    json.RawMessage `json:"components,omitempty"`
	CoauthorCount int             `json:"coauthor_count"`
}

func (s *Server) listResearchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := researcher.ListFilter{Limit: defaultLimit}

	if v := q.Get("faculty"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "faculty must be a boolean")
			return
		}
		f.FacultyOnly = b
	}
	limit, ok := intParam(w, q.Get("limit"), "limit", defaultLimit)
	if !ok {
		return
	}
	offset, ok := intParam(w, q.Get("offset"), "offset", 0)
	if !ok {
		return
	}
	f.Limit = min(max(limit, 1), maxLimit)
	f.Offset = offset

	list, err := s.deps.Researchers.List(r.Context(), f)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if list == nil {
		list = []researcher.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"researchers": list,
		"limit":       f.Limit,
		"offset":      f.Offset,
	})
}

func (s *Server) researcher(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ids, err := s.deps.Researchers.Identifiers(r.Context(), rec.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	var exp []fields.Expertise
	if s.deps.Expertise != nil {
		exp, err = s.deps.Expertise.Expertise(r.Context(), rec.ID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
	}
	if ids == nil {
		ids = []researcher.Identifier{}
	}
	if exp == nil {
		exp = []fields.Expertise{}
	}
	writeJSON(w, http.StatusOK, ResearcherDetail{
		Record:               rec,
		ReputationComponents: json.RawMessage(rec.ReputationComponents),
		Identifiers:          ids,
		Expertise:            exp,
	})
}

func (s *Server) reputation(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	coauthors, err := s.deps.Publications.CoauthorCount(r.Context(), rec.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	view := ReputationView{
		ResearcherID:  rec.ID,
		DisplayName:   rec.DisplayName,
		Score:         rec.ReputationScore,
		CoauthorCount: coauthors,
	}
	if len(rec.ReputationComponents) > 0 {
		view.Components = json.RawMessage(rec.ReputationComponents)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) network(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	root, ok := intParam(w, qs.Get("root"), "root", 0)
	if !ok {
		return
	}
	depth, ok := intParam(w, qs.Get("depth"), "depth", s.deps.Network.MaxDepth)
	if !ok {
		return
	}
	minCount, ok := intParam(w, qs.Get("min"), "min", s.deps.Network.MinCollaborations)
	if !ok {
		return
	}

	net, err := publication.BuildNetwork(r.Context(), s.deps.Publications, publication.NetworkQuery{
		Root:              int64(root),
		MaxDepth:          depth,
		MinCollaborations: max(minCount, 1),
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, net)
}

func (s *Server) mergeCandidates(w http.ResponseWriter, r *http.Request) {
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if status == "" {
		status = researcher.CandidatePending
	}
	if status != "all" && !mergeStatuses[status] {
		writeError(w, http.StatusBadRequest, "status must be one of pending, approved, completed, rejected, all")
		return
	}
	if status == "all" {
		status = ""
	}

	list, err := s.deps.Researchers.MergeCandidates(r.Context(), status)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if list == nil {
		list = []researcher.MergeCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"merge_candidates": list})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	snap, err := s.deps.Status.Collect(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// lookup resolves the {id} path parameter. Unknown ids, including records
// merged away, answer 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*researcher.Record, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid researcher id")
		return nil, false
	}
	rec, err := s.deps.Researchers.Get(r.Context(), id)
	if eris.Is(err, researcher.ErrNotFound) || (err == nil && rec == nil) {
		writeError(w, http.StatusNotFound, "researcher not found")
		return nil, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return nil, false
	}
	return rec, true
}

func intParam(w http.ResponseWriter, raw, name string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
