package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/scibot/internal/excel"
	"github.com/example/scibot/internal/quiz"
	"github.com/example/scibot/internal/spaced_repetition"
)

const (
	defaultLogWindow = 30 * 24 * time.Hour
	defaultQuizSize  = 5
)

func learnerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "learnerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid learner id")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) handleEnsureLearner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID int64  `json:"telegram_id"`
		Username   string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.TelegramID == 0 {
		writeError(w, http.StatusBadRequest, "telegram_id required")
		return
	}

	learner, err := s.reviews.EnsureLearner(r.Context(), req.TelegramID, req.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, learner)
}

func (s *Server) handleGetLearner(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	learner, err := s.reviews.Learner(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, learner)
}

func (s *Server) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled       bool `json:"enabled"`
		Hour          int  `json:"hour"`
		ReviewsPerDay int  `json:"reviews_per_day"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.reviews.UpdateNotifications(r.Context(), id, req.Enabled, req.Hour, req.ReviewsPerDay); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	concept, started, err := s.reviews.Enroll(r.Context(), id, req.Name, req.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"concept": concept, "enrolled": started})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	var req struct {
		ConceptID int64    `json:"concept_id"`
		Quality   *float64 `json:"quality"`
		Grade     *int     `json:"grade"` // 0-5, alternative to quality
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ConceptID == 0 || (req.Quality == nil) == (req.Grade == nil) {
		writeError(w, http.StatusBadRequest, "concept_id and one of quality or grade required")
		return
	}

	var quality float64
	if req.Grade != nil {
		q, err := spaced_repetition.Grade(*req.Grade).Quality()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		quality = q
	} else {
		quality = *req.Quality
	}

	result, err := s.reviews.Review(r.Context(), id, req.ConceptID, quality)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if s.grader == nil {
		writeError(w, http.StatusNotImplemented, "answer grading not configured")
		return
	}
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	var req struct {
		ConceptID int64  `json:"concept_id"`
		Question  string `json:"question"`
		Expected  string `json:"expected"`
		Answer    string `json:"answer"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ConceptID == 0 || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "concept_id and answer required")
		return
	}

	if req.Expected == "" {
		concept, err := s.reviews.Concept(r.Context(), req.ConceptID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		req.Expected = concept.Description
	}

	quality, err := s.grader.Grade(r.Context(), req.Question, req.Expected, req.Answer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.reviews.Review(r.Context(), id, req.ConceptID, quality)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quality": quality, "review": result})
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	count := defaultQuizSize
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}
	questionType := quiz.MultipleChoice
	if v := r.URL.Query().Get("type"); v != "" {
		questionType = quiz.QuestionType(v)
	}
	if questionType != quiz.MultipleChoice && questionType != quiz.TextInput {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	if _, err := s.reviews.Learner(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	questions, err := s.quizzes.Create(r.Context(), id, count, questionType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions, "count": len(questions)})
}

func (s *Server) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	var req struct {
		ConceptID int64  `json:"concept_id"`
		Choice    string `json:"choice"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ConceptID == 0 || req.Choice == "" {
		writeError(w, http.StatusBadRequest, "concept_id and choice required")
		return
	}

	concept, err := s.reviews.Concept(r.Context(), req.ConceptID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	quality := quiz.Score(concept, req.Choice)
	result, err := s.reviews.Review(r.Context(), id, req.ConceptID, quality)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"correct": quality == 1,
		"answer":  concept.Name,
		"review":  result,
	})
}

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	items, err := s.reviews.Due(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"due": items, "count": len(items)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	stats, err := s.reviews.Stats(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	to := s.reviews.Now()
	from := to.Add(-defaultLogWindow)
	for name, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: expected RFC3339", name))
			return
		}
		*dst = t
	}

	if _, err := s.reviews.Learner(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	logs, err := s.reviews.Logs(r.Context(), id, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := learnerID(w, r)
	if !ok {
		return
	}
	if _, err := s.reviews.Learner(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	knowledge, err := s.reviews.Knowledge(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logs, err := s.reviews.Logs(r.Context(), id, time.Time{}, s.reviews.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteReport(&buf, knowledge, logs); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scibot-%s.xlsx"`, id))
	w.Write(buf.Bytes())
}
