package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"voiceqc.dev/voiceqc/internal/db"
)

type enqueueRequest struct {
	Priority int `json:"priority"`
}

type jobStatusResponse struct {
	DialogUUID string        `json:"dialog_uuid"`
	TargetLang string        `json:"target_lang"`
	State      string        `json:"state"`
	Position   int           `json:"position,omitempty"`
	Persisted  *db.JobStatus `json:"persisted,omitempty"`
}

func (s *Server) handleQueueStatus(c echo.Context) error {
	return success(c, s.queue.Status())
}

func (s *Server) handleEnqueue(c echo.Context) error {
	dialogUUID := strings.TrimSpace(c.Param("dialog_uuid"))
	if dialogUUID == "" {
		return failValidation(c, map[string]string{"dialog_uuid": "is required"})
	}

	req := enqueueRequest{}
	if c.Request().ContentLength > 0 {
		if err := decodeJSONBody(c, &req); err != nil {
			return failValidation(c, map[string]string{"body": err.Error()})
		}
	}

	summary, err := s.pool.GetDialogSummary(c.Request().Context(), dialogUUID, s.opts.TargetLang)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Dialog not found")
		}
		s.logger.Error().Err(err).Str("dialog_uuid", dialogUUID).Msg("dialog lookup failed")
		return internalError(c, "Failed to load dialog")
	}

	inserted := s.queue.Enqueue(dialogUUID, req.Priority)
	status := s.queue.Status()

	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"dialog_uuid": summary.DialogUUID,
		"target_lang": s.opts.TargetLang,
		"enqueued":    inserted,
		"position":    s.queue.Position(dialogUUID),
		"queue":       status,
	})
}

func (s *Server) handleDequeue(c echo.Context) error {
	dialogUUID := strings.TrimSpace(c.Param("dialog_uuid"))
	if dialogUUID == "" {
		return failValidation(c, map[string]string{"dialog_uuid": "is required"})
	}

	if s.queue.IsActive(dialogUUID) {
		return fail(c, http.StatusConflict, "Job is already running and cannot be dequeued", nil)
	}
	if !s.queue.Dequeue(dialogUUID) {
		return failNotFound(c, "Job is not queued")
	}

	return success(c, map[string]any{
		"dialog_uuid": dialogUUID,
		"dequeued":    true,
		"queue":       s.queue.Status(),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	dialogUUID := strings.TrimSpace(c.Param("dialog_uuid"))
	if dialogUUID == "" {
		return failValidation(c, map[string]string{"dialog_uuid": "is required"})
	}

	summary, err := s.pool.GetDialogSummary(c.Request().Context(), dialogUUID, s.opts.TargetLang)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Dialog not found")
		}
		s.logger.Error().Err(err).Str("dialog_uuid", dialogUUID).Msg("dialog lookup failed")
		return internalError(c, "Failed to load dialog")
	}

	resp := jobStatusResponse{
		DialogUUID: dialogUUID,
		TargetLang: s.opts.TargetLang,
		Persisted:  summary.Translation,
	}
	switch {
	case s.queue.IsActive(dialogUUID):
		resp.State = "active"
	case s.queue.IsQueued(dialogUUID):
		resp.State = "queued"
		resp.Position = s.queue.Position(dialogUUID)
	case summary.Translation != nil:
		resp.State = summary.Translation.Status
	default:
		resp.State = "idle"
	}

	return success(c, resp)
}

func (s *Server) handleDialogs(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), 50, 1, 500)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	items, err := s.pool.ListDialogs(c.Request().Context(), s.opts.TargetLang, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query dialogs failed")
		return internalError(c, "Failed to load dialogs")
	}

	return success(c, map[string]any{
		"items":       items,
		"target_lang": s.opts.TargetLang,
		"limit":       limit,
	})
}

func (s *Server) handleTranslation(c echo.Context) error {
	dialogUUID := strings.TrimSpace(c.Param("dialog_uuid"))
	if dialogUUID == "" {
		return failValidation(c, map[string]string{"dialog_uuid": "is required"})
	}

	targetLang := strings.TrimSpace(c.QueryParam("lang"))
	if targetLang == "" {
		targetLang = s.opts.TargetLang
	}

	stored, err := s.pool.GetTranslation(c.Request().Context(), dialogUUID, targetLang)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Translation not found")
		}
		s.logger.Error().Err(err).Str("dialog_uuid", dialogUUID).Msg("query translation failed")
		return internalError(c, "Failed to load translation")
	}

	return success(c, stored)
}
