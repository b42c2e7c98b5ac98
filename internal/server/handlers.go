package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/navigation"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/session"
)

const maxBodyBytes = 1 << 20

type mapResponse struct {
	Map           learnmap.LearningMap     `json:"map"`
	Visualization projection.Visualization `json:"visualization"`
}

type questionRequest struct {
	ArticleID string `json:"article_id"`
	Text      string `json:"text"`
}

type questionResponse struct {
	QuestionID    string                   `json:"question_id"`
	Visualization projection.Visualization `json:"visualization"`
}

type measurementsRequest struct {
	Sizes map[string]projection.Size `json:"sizes"`
}

type layoutResponse struct {
	Ticket uint64 `json:"ticket"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "subject"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapResponse{Map: sess.Map(), Visualization: sess.Visualization()})
}

func (s *Server) handleVisualization(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Visualization())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var ev navigation.Event
	if err := decode(w, r, &ev); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.Controller().Dispatch(r.Context(), ev); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Visualization())
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req questionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ArticleID == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "article_id is required"))
		return
	}
	id, err := sess.Controller().AskQuestion(r.Context(), req.ArticleID, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/maps/%s/visualization", sess.Subject()))
	writeJSON(w, http.StatusCreated, questionResponse{QuestionID: id, Visualization: sess.Visualization()})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Controller().Retry(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sess.Visualization())
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req measurementsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Measure(req.Sizes)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, layoutResponse{Ticket: sess.Relayout(r.Context())})
}
