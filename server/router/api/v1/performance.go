package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medrecall/medrecall/server/service/performance"
	"github.com/medrecall/medrecall/store"
)

// PerformanceSnapshotResponse is the live snapshot for a scope.
type PerformanceSnapshotResponse struct {
	AverageScore  int32 `json:"averageScore"`
	TotalAttempts int32 `json:"totalAttempts"`
}

// GetPerformance returns the caller's live performance snapshot,
// optionally scoped by specialty and difficulty.
// GET /api/v1/performance?specialty=cardiology&difficulty=foundation
func (s *APIV1Service) GetPerformance(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	key := &performance.SnapshotKey{Specialty: c.QueryParam("specialty")}
	if difficulty := c.QueryParam("difficulty"); difficulty != "" {
		key.Difficulty = &difficulty
	}

	snapshot, err := s.Perf.Snapshot(c.Request().Context(), uid, key)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, PerformanceSnapshotResponse{
		AverageScore:  snapshot.AverageScore,
		TotalAttempts: snapshot.TotalAttempts,
	})
}

// LeaderboardScoreResponse is the caller's single merged figure across
// both practice modes, the number the leaderboard ranks by.
type LeaderboardScoreResponse struct {
	MergedAverage int32 `json:"mergedAverage"`
	TotalAttempts int32 `json:"totalAttempts"`
}

// GetLeaderboardScore merges the caller's case and question overall
// aggregates attempt-weighted. Ranking and pagination live in the
// presentation layer.
// GET /api/v1/leaderboard
func (s *APIV1Service) GetLeaderboardScore(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	scope := store.StatScopeOverall
	stats, err := s.Perf.UserStats(c.Request().Context(), uid, &scope)
	if err != nil {
		return errorResponse(c, err)
	}

	merged := performance.MergeAverages(stats)
	return c.JSON(http.StatusOK, LeaderboardScoreResponse{
		MergedAverage: merged.AverageScore,
		TotalAttempts: merged.TotalAttempts,
	})
}
