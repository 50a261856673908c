package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/medrecall/medrecall/server/internal/errors"
	"github.com/medrecall/medrecall/store"
)

// RevisionNoteResponse is a served note plus how the cache satisfied
// the request.
type RevisionNoteResponse struct {
	CacheStatus string `json:"cacheStatus"`

	UID             string   `json:"uid"`
	Specialty       string   `json:"specialty"`
	Difficulty      *string  `json:"difficulty,omitempty"`
	ClusterKey      *string  `json:"clusterKey,omitempty"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	KeyConcepts     []string `json:"keyConcepts"`
	CommonMistakes  []string `json:"commonMistakes"`
	RapidChecklist  []string `json:"rapidChecklist"`
	PracticePlan    []string `json:"practicePlan"`
	SourceVersion   string   `json:"sourceVersion"`
	AverageScore    int32    `json:"averageScore"`
	TotalAttempts   int32    `json:"totalAttempts"`
	LastGeneratedTs int64    `json:"lastGeneratedTs"`
}

// GetRevisionNote serves the personalized note for a context.
// GET /api/v1/notes/:contextType/:contextID?refresh=true
func (s *APIV1Service) GetRevisionNote(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	contextType := store.ContextType(c.Param("contextType"))
	switch contextType {
	case store.ContextTypeCase, store.ContextTypeQuestion, store.ContextTypeCategory:
	default:
		return errorResponse(c, apperrors.InvalidInputf("unknown context type %q", contextType))
	}

	forceRefresh := c.QueryParam("refresh") == "true"

	note, status, err := s.Revision.GetNote(c.Request().Context(), uid, contextType, c.Param("contextID"), forceRefresh)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, RevisionNoteResponse{
		CacheStatus:     string(status),
		UID:             note.UID,
		Specialty:       note.Specialty,
		Difficulty:      note.Difficulty,
		ClusterKey:      note.ClusterKey,
		Title:           note.Title,
		Summary:         note.Summary,
		KeyConcepts:     note.KeyConcepts,
		CommonMistakes:  note.CommonMistakes,
		RapidChecklist:  note.RapidChecklist,
		PracticePlan:    note.PracticePlan,
		SourceVersion:   note.SourceVersion,
		AverageScore:    note.AverageScore,
		TotalAttempts:   note.TotalAttempts,
		LastGeneratedTs: note.LastGeneratedTs,
	})
}
