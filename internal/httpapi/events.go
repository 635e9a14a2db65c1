package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"voiceqc.dev/voiceqc/internal/progress"
)

// handleJobEvents streams progress events for one dialog as
// server-sent events. One observer per dialog: a new subscription
// replaces the previous one. The stream closes on a terminal stage or
// when the client disconnects.
func (s *Server) handleJobEvents(c echo.Context) error {
	dialogUUID := strings.TrimSpace(c.Param("dialog_uuid"))
	if dialogUUID == "" {
		return failValidation(c, map[string]string{"dialog_uuid": "is required"})
	}
	if s.reporter == nil {
		return fail(c, http.StatusServiceUnavailable, "Progress streaming is not available", nil)
	}

	events := make(chan progress.Event, 32)
	s.reporter.Subscribe(dialogUUID, func(event progress.Event) {
		// Drop instead of blocking the job runner on a slow client.
		select {
		case events <- event:
		default:
		}
	})
	defer s.reporter.Unsubscribe(dialogUUID)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	if err := writeSSEEvent(resp, progress.Event{
		Stage:   progress.StageQueued,
		Message: "subscribed",
	}); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if err := writeSSEEvent(resp, event); err != nil {
				return nil
			}
			if event.Stage == progress.StageComplete || event.Stage == progress.StageError {
				return nil
			}
		}
	}
}

func writeSSEEvent(resp *echo.Response, event progress.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
