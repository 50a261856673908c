package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const defaultDueLimit = 20

// DueItem is one review card due for practice.
type DueItem struct {
	ItemID         int32  `json:"itemId"`
	ItemKind       string `json:"itemKind"`
	Repetitions    int32  `json:"repetitions"`
	IntervalDays   int32  `json:"intervalDays"`
	NextReviewDate string `json:"nextReviewDate"`
}

// GetDueItems lists the caller's due review items, soonest first.
// GET /api/v1/reviews/due?limit=20
func (s *APIV1Service) GetDueItems(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	limit := defaultDueLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	cards, err := s.Review.DueItems(c.Request().Context(), uid, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	items := make([]DueItem, 0, len(cards))
	for _, card := range cards {
		items = append(items, DueItem{
			ItemID:         card.ItemID,
			ItemKind:       card.ItemKind.String(),
			Repetitions:    card.Repetitions,
			IntervalDays:   card.IntervalDays,
			NextReviewDate: time.Unix(card.NextReviewTs, 0).UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, items)
}
