package merge

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Register registers merge routes
func Register(g *echo.Group) {
	g.POST("/preview", Preview)
	g.POST("", Merge)
	g.POST("/cluster", MergeCluster)
	g.POST("/unmerge", Unmerge)
	g.POST("/sweep", Sweep)
	g.GET("/suggestions", Suggestions)
	g.GET("/quality/:id", QualityScore)
}

// Preview analyzes a prospective merge without mutating anything
func Preview(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.Preview")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.PreviewMergeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	preview, err := engine.PreviewMerge(ctx, tenantID, req.EntityIDs)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, preview)
}

// Merge merges source entities into a target
func Merge(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.Merge")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.MergeEntitiesRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	options := models.MergeOptions{
		Strategy:        req.Strategy,
		PreserveSources: req.PreserveSources,
		FieldOverrides:  req.FieldOverrides,
		MergedBy:        req.MergedBy,
		Notes:           req.Notes,
	}
	if options.MergedBy == nil {
		if userID := ctxmiddleware.GetUserID(ctx); userID != "" {
			options.MergedBy = &userID
		}
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := engine.MergeEntities(ctx, tenantID, req.TargetID, req.SourceIDs, options)
	if err != nil {
		return err
	}

	emitMerged(ctx, tenantID, result)

	return c.JSON(http.StatusOK, result)
}

// MergeCluster merges a duplicate cluster into its master entity
func MergeCluster(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.MergeCluster")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.MergeClusterRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	options := models.MergeOptions{
		Strategy: req.Strategy,
		MergedBy: req.MergedBy,
	}
	if options.MergedBy == nil {
		if userID := ctxmiddleware.GetUserID(ctx); userID != "" {
			options.MergedBy = &userID
		}
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := engine.MergeCluster(ctx, tenantID, req.ClusterID, req.MasterEntityID, options)
	if err != nil {
		return err
	}

	emitMerged(ctx, tenantID, result)

	return c.JSON(http.StatusOK, result)
}

// Unmerge reverses a previously executed merge
func Unmerge(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.Unmerge")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.UnmergeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := engine.UnmergeEntities(ctx, tenantID, req.MergeHistoryID, req.Reason)
	if err != nil {
		return err
	}

	if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil && emitter != nil {
		if err := emitter.EmitEntityUnmerged(ctx, tenantID, result.EntityType, result); err != nil {
			logWarn(ctx, "Failed to emit unmerge event", err)
		}
	}

	return c.JSON(http.StatusOK, result)
}

// Sweep auto-merges high confidence duplicate clusters
func Sweep(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.Sweep")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.AutoMergeSweepRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := engine.AutoMergeHighConfidenceDuplicates(ctx, tenantID, req.EntityType, req.Threshold, req.DryRun, req.Limit)
	if err != nil {
		return err
	}

	if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil && emitter != nil {
		if err := emitter.EmitSweepCompleted(ctx, tenantID, req.EntityType, result); err != nil {
			logWarn(ctx, "Failed to emit sweep event", err)
		}
	}

	return c.JSON(http.StatusOK, result)
}

// Suggestions returns ranked merge recommendations from pending candidates
func Suggestions(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.Suggestions")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	entityType := c.QueryParam("entity_type")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	suggestions, err := engine.GetSmartMergeSuggestions(ctx, tenantID, entityType, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.SuggestionListResponse{
		Items:      suggestions,
		TotalCount: len(suggestions),
	})
}

// QualityScore returns the data quality breakdown for one entity
func QualityScore(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "merge_handler.QualityScore")
	defer span.End()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	score, err := engine.CalculateDataQualityScore(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, score)
}

// emitMerged publishes the merged event; emission failures never fail the
// request.
func emitMerged(ctx context.Context, tenantID string, result *models.MergeResult) {
	ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx)
	if err != nil || emitter == nil {
		return
	}
	if err := emitter.EmitEntityMerged(ctx, tenantID, result.EntityType, result); err != nil {
		logWarn(ctx, "Failed to emit merge event", err)
	}
}

func logWarn(ctx context.Context, msg string, err error) {
	if ctx, logger, lerr := ectoinject.GetContext[ectologger.Logger](ctx); lerr == nil && logger != nil {
		logger.WithContext(ctx).WithError(err).Warn(msg)
	}
}
