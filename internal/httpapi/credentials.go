package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"voiceqc.dev/voiceqc/internal/auth"
	"voiceqc.dev/voiceqc/internal/keypool"
)

const adminTokenHeader = "X-Admin-Token"

type credentialAddRequest struct {
	Label  string `json:"label"`
	Secret string `json:"secret"`
}

// requireAdmin guards the credential admin surface. With no configured
// token hash the surface stays closed.
func (s *Server) requireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.opts.AdminTokenHash == "" {
				return fail(c, http.StatusForbidden, "Admin API is disabled", nil)
			}

			token := strings.TrimSpace(c.Request().Header.Get(adminTokenHeader))
			if !auth.VerifyToken(token, s.opts.AdminTokenHash) {
				return fail(c, http.StatusUnauthorized, "Invalid admin token", nil)
			}
			return next(c)
		}
	}
}

func (s *Server) handleCredentialList(c echo.Context) error {
	if s.keys == nil {
		return internalError(c, "Key pool is not available")
	}
	return success(c, map[string]any{
		"items": s.keys.Snapshot(),
	})
}

func (s *Server) handleCredentialAdd(c echo.Context) error {
	if s.keys == nil {
		return internalError(c, "Key pool is not available")
	}

	var req credentialAddRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if strings.TrimSpace(req.Secret) == "" {
		return failValidation(c, map[string]string{"secret": "is required"})
	}

	credential, err := s.keys.Add(c.Request().Context(), uuid.NewString(), strings.TrimSpace(req.Label), strings.TrimSpace(req.Secret))
	if err != nil {
		s.logger.Error().Err(err).Msg("add credential failed")
		return internalError(c, "Failed to add credential")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"credential_uuid": credential.ID,
		"label":           credential.Label,
		"active":          credential.Active,
	})
}

func (s *Server) handleCredentialRemove(c echo.Context) error {
	if s.keys == nil {
		return internalError(c, "Key pool is not available")
	}

	credentialUUID := strings.TrimSpace(c.Param("credential_uuid"))
	if credentialUUID == "" {
		return failValidation(c, map[string]string{"credential_uuid": "is required"})
	}

	if err := s.keys.Remove(c.Request().Context(), credentialUUID); err != nil {
		if errors.Is(err, keypool.ErrCredentialNotFound) {
			return failNotFound(c, "Credential not found")
		}
		s.logger.Error().Err(err).Str("credential_uuid", credentialUUID).Msg("remove credential failed")
		return internalError(c, "Failed to remove credential")
	}

	return success(c, map[string]any{
		"credential_uuid": credentialUUID,
		"removed":         true,
	})
}

func (s *Server) handleCredentialReactivate(c echo.Context) error {
	if s.keys == nil {
		return internalError(c, "Key pool is not available")
	}

	credentialUUID := strings.TrimSpace(c.Param("credential_uuid"))
	if credentialUUID == "" {
		return failValidation(c, map[string]string{"credential_uuid": "is required"})
	}

	if err := s.keys.Reactivate(c.Request().Context(), credentialUUID); err != nil {
		if errors.Is(err, keypool.ErrCredentialNotFound) {
			return failNotFound(c, "Credential not found")
		}
		s.logger.Error().Err(err).Str("credential_uuid", credentialUUID).Msg("reactivate credential failed")
		return internalError(c, "Failed to reactivate credential")
	}

	return success(c, map[string]any{
		"credential_uuid": credentialUUID,
		"active":          true,
	})
}
