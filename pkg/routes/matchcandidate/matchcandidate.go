package matchcandidate

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	entityrepo "github.com/Ramsey-B/clover/internal/repositories/entity"
	"github.com/Ramsey-B/clover/internal/repositories/matchcandidate"
)

var validate = validator.New()

// Register registers match candidate routes
func Register(g *echo.Group) {
	g.GET("", ListPending)
	g.POST("", Score)
	g.GET("/:id", Get)
	g.POST("/:id/dismiss", Dismiss)
}

// ListPending lists pending match candidates ranked by similarity
func ListPending(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchcandidate_handler.ListPending")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, repo, err := ectoinject.GetContext[*matchcandidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	candidates, err := repo.ListPending(ctx, tenantID, c.QueryParam("entity_type"), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, candidates)
}

// Score computes similarity for an entity pair and records it as a pending
// candidate. Rescoring an existing pair keeps the higher score.
func Score(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchcandidate_handler.Score")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.ScoreCandidateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SourceEntityID == req.CandidateEntityID {
		return httperror.NewHTTPError(http.StatusBadRequest, "source and candidate must be different entities")
	}

	ctx, entities, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	pair, err := entities.GetByIDs(ctx, tenantID, []string{req.SourceEntityID, req.CandidateEntityID})
	if err != nil {
		return err
	}
	if len(pair) != 2 {
		return httperror.NewHTTPError(http.StatusNotFound, "one or more entities not found")
	}

	source, candidate := &pair[0], &pair[1]
	if source.ID != req.SourceEntityID {
		source, candidate = candidate, source
	}
	if source.EntityType != candidate.EntityType {
		return httperror.NewHTTPError(http.StatusBadRequest, "entities must share an entity type")
	}

	score, matchedFields := matching.NewScorer().CompareEntities(source, candidate)
	if matchedFields == nil {
		matchedFields = []string{}
	}

	ctx, repo, err := ectoinject.GetContext[*matchcandidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := repo.Create(ctx, &models.MatchCandidate{
		TenantID:          tenantID,
		EntityType:        source.EntityType,
		SourceEntityID:    source.ID,
		CandidateEntityID: candidate.ID,
		SimilarityScore:   score,
		MatchedFields:     database.NewJSONB(matchedFields),
		Status:            models.MatchCandidateStatusPending,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

// Get returns a single match candidate
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchcandidate_handler.Get")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*matchcandidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	candidate, err := repo.GetByID(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	if candidate == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "match candidate not found")
	}

	return c.JSON(http.StatusOK, candidate)
}

// Dismiss closes a candidate without merging
func Dismiss(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchcandidate_handler.Dismiss")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var resolvedBy *string
	if userID := ctxmiddleware.GetUserID(ctx); userID != "" {
		resolvedBy = &userID
	}

	ctx, repo, err := ectoinject.GetContext[*matchcandidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := repo.Dismiss(ctx, tenantID, c.Param("id"), resolvedBy); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "dismissed"})
}
