package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/internal/observe"
)

// formatRequest is the JSON body of POST /v1/format.
type formatRequest struct {
	Text        string   `json:"text"`
	Identifiers []string `json:"identifiers,omitempty"`
}

type replacement struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Original   string `json:"original"`
	Identifier string `json:"identifier"`
	Source     string `json:"source"`
}

// formatResponse is the JSON body returned from POST /v1/format.
type formatResponse struct {
	Text         string        `json:"text"`
	Replacements []replacement `json:"replacements"`
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.engine().Pipeline().FormatText(r.Context(), req.Text, req.Identifiers)
	if err != nil {
		observe.Logger(r.Context()).Warn("format failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	resp := formatResponse{Text: out.Text, Replacements: make([]replacement, 0, len(out.Replacements))}
	for _, rep := range out.Replacements {
		resp.Replacements = append(resp.Replacements, replacement{
			Start:      rep.Start,
			End:        rep.End,
			Original:   rep.Original,
			Identifier: rep.Identifier,
			Source:     rep.Source,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// classifyRequest is the JSON body of POST /v1/classify.
type classifyRequest struct {
	Text string `json:"text"`
}

type classifiedIdentifier struct {
	Raw        string                `json:"raw"`
	Key        string                `json:"key"`
	Convention identifier.Convention `json:"convention"`
	Words      []string              `json:"words"`
	Score      float64               `json:"score"`
}

// classifyResponse is the JSON body returned from POST /v1/classify.
type classifyResponse struct {
	Identifiers []classifiedIdentifier `json:"identifiers"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	ids := s.engine().Classifier().Classify(req.Text)
	resp := classifyResponse{Identifiers: make([]classifiedIdentifier, 0, len(ids))}
	for _, id := range ids {
		resp.Identifiers = append(resp.Identifiers, classifiedIdentifier{
			Raw:        id.Raw,
			Key:        id.Key,
			Convention: id.Convention,
			Words:      id.Words,
			Score:      id.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// matchRequest is the JSON body of POST /v1/match.
type matchRequest struct {
	Phrase      string   `json:"phrase"`
	Identifiers []string `json:"identifiers"`

	// Threshold overrides the configured fuzzy threshold when set.
	Threshold *float64 `json:"threshold,omitempty"`
}

// matchResponse is the JSON body returned from POST /v1/match.
type matchResponse struct {
	Matched    bool    `json:"matched"`
	Identifier string  `json:"identifier,omitempty"`
	Confidence float64 `json:"confidence"`
	Kind       string  `json:"kind,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("threshold %v is out of range [0, 1]", *req.Threshold))
		return
	}

	eng := s.engine()
	m := eng.Matcher()
	if req.Threshold != nil {
		m = eng.MatcherWithThreshold(*req.Threshold)
	}

	res, ok := m.MatchStrings(req.Phrase, req.Identifiers)
	if !ok {
		s.metrics.RecordMatch(r.Context(), "none")
		writeJSON(w, http.StatusOK, matchResponse{})
		return
	}
	s.metrics.RecordMatch(r.Context(), res.Kind.String())
	writeJSON(w, http.StatusOK, matchResponse{
		Matched:    true,
		Identifier: res.Identifier.Raw,
		Confidence: res.Confidence,
		Kind:       res.Kind.String(),
	})
}

// decode reads a JSON request body into v. On failure it writes the error
// response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
