// Package v1 exposes the caller-facing operations over REST. Handlers
// are thin JSON adapters over the service layer; identity arrives in a
// header because authentication lives outside this system.
package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/internal/profile"
	apperrors "github.com/medrecall/medrecall/server/internal/errors"
	"github.com/medrecall/medrecall/server/service/performance"
	"github.com/medrecall/medrecall/server/service/practice"
	"github.com/medrecall/medrecall/server/service/review"
	"github.com/medrecall/medrecall/server/service/revision"
	"github.com/medrecall/medrecall/store"
)

// UserIDHeader carries the authenticated user's id, set by the gateway
// in front of this service.
const UserIDHeader = "X-User-ID"

// APIV1Service holds the service dependencies for the v1 routes.
type APIV1Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Practice *practice.Service
	Review   *review.Service
	Revision *revision.Service
	Perf     *performance.Service
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(profile *profile.Profile, store *store.Store, practiceService *practice.Service, reviewService *review.Service, revisionService *revision.Service, perfService *performance.Service) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Store:    store,
		Practice: practiceService,
		Review:   reviewService,
		Revision: revisionService,
		Perf:     perfService,
	}
}

// Register mounts the v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/attempts", s.RecordAttempt)
	g.GET("/reviews/due", s.GetDueItems)
	g.GET("/notes/:contextType/:contextID", s.GetRevisionNote)
	g.GET("/performance", s.GetPerformance)
	g.GET("/leaderboard", s.GetLeaderboardScore)
}

// userID extracts the caller's user id from the request header.
func userID(c echo.Context) (int32, error) {
	raw := c.Request().Header.Get(UserIDHeader)
	if raw == "" {
		return 0, errors.New("missing " + UserIDHeader + " header")
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed %s header", UserIDHeader)
	}
	return int32(id), nil
}

// errorResponse maps service errors to HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
