package gateway

import (
	"net/http"

	"github.com/dohr-michael/nudge/internal/ledger"
	"github.com/dohr-michael/nudge/internal/tracker"
)

// Request bodies.

type startTaskRequest struct {
	Theme    string `json:"theme"`
	Deadline string `json:"deadline"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type deadlineRequest struct {
	Deadline string `json:"deadline"`
}

type progressRequest struct {
	Note string `json:"note"`
}

type threadRequest struct {
	ThreadID string `json:"thread_id"`
}

type deedRequest struct {
	Text string `json:"text"`
}

// Response bodies.

type threadResponse struct {
	ThreadID string `json:"thread_id"`
}

type deedResponse struct {
	Count int `json:"count"`
}

type streakResponse struct {
	tracker.StreakReport
	Bars []string `json:"bars"`
}

// =============================================================================
// REPORTS
// =============================================================================

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req startTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.tracker.StartTask(r.Context(), key, req.Theme, req.Deadline); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondStatus(w, r, http.StatusCreated)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondStatus(w, r, http.StatusOK)
}

func (s *Server) respondStatus(w http.ResponseWriter, r *http.Request, code int) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.tracker.Status(key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, code, st)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req themeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.SetTheme(r.Context(), key, req.Theme); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondStatus(w, r, http.StatusOK)
}

func (s *Server) handleSetDeadline(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req deadlineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.tracker.SetDeadline(r.Context(), key, req.Deadline); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondStatus(w, r, http.StatusOK)
}

func (s *Server) handleLogProgress(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req progressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	note, err := s.tracker.LogProgress(r.Context(), key, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleMarkMilestone(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	milestones, err := s.tracker.MarkMilestone(r.Context(), key, pathParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, milestones)
}

func (s *Server) handleAttachThread(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req threadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	thread, err := s.tracker.AttachThread(r.Context(), key, req.ThreadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threadResponse{ThreadID: thread})
}

// =============================================================================
// DEEDS
// =============================================================================

func (s *Server) handleRecordDeed(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req deedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	count, err := s.tracker.RecordDeed(r.Context(), key, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, deedResponse{Count: count})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Today(key))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.LastWeek(key))
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report := s.tracker.Streak(key)
	resp := streakResponse{StreakReport: report, Bars: make([]string, 0, len(report.Week))}
	for _, day := range report.Week {
		resp.Bars = append(resp.Bars, ledger.Bar(day.Count, ledger.BarWidth))
	}
	writeJSON(w, http.StatusOK, resp)
}
