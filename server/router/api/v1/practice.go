package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/medrecall/medrecall/server/internal/errors"
	"github.com/medrecall/medrecall/server/service/practice"
	"github.com/medrecall/medrecall/store"
)

// RecordAttemptRequest is one submitted attempt.
type RecordAttemptRequest struct {
	ItemID   int32  `json:"itemId"`
	ItemKind string `json:"itemKind"`
	// Score is set for case attempts.
	Score *int32 `json:"score,omitempty"`
	// OptionKey is set for question attempts.
	OptionKey *string `json:"optionKey,omitempty"`
}

// RecordAttemptResponse reports the updated schedule.
type RecordAttemptResponse struct {
	AttemptUID     string `json:"attemptUid"`
	Correct        *bool  `json:"correct,omitempty"`
	IntervalDays   int32  `json:"intervalDays"`
	NextReviewDate string `json:"nextReviewDate"`
}

// RecordAttempt records one practice attempt.
// POST /api/v1/attempts
func (s *APIV1Service) RecordAttempt(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	req := &RecordAttemptRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	kind := store.ItemKind(req.ItemKind)
	if kind != store.ItemKindCase && kind != store.ItemKindQuestion {
		return errorResponse(c, apperrors.InvalidInputf("unknown item kind %q", req.ItemKind))
	}

	result, err := s.Practice.RecordAttempt(c.Request().Context(), uid, req.ItemID, kind, &practice.Outcome{
		Score:     req.Score,
		OptionKey: req.OptionKey,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, RecordAttemptResponse{
		AttemptUID:     result.AttemptUID,
		Correct:        result.Correct,
		IntervalDays:   result.IntervalDays,
		NextReviewDate: time.Unix(result.NextReviewTs, 0).UTC().Format(time.RFC3339),
	})
}
