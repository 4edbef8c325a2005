package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

// AuditHandler serves the hierarchy code ledger.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(a *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: a}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit")
	audit.Get("/recent", h.Recent)
	audit.Get("/stats", h.Stats)
	audit.Get("/changes", h.Changes)
	audit.Get("/batches/:batchId", h.Batch)
}

// Recent returns the newest changes and the ledger size.
func (h *AuditHandler) Recent(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return fail(c, err)
	}
	changes, total, err := h.audit.GetRecentChanges(c.Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"changes": nonNil(changes), "total": total})
}

// Stats aggregates the whole ledger.
func (h *AuditHandler) Stats(c fiber.Ctx) error {
	stats, err := h.audit.GetChangeStatistics(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

// Changes filters the feed by ?type or ?trigger.
func (h *AuditHandler) Changes(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return fail(c, err)
	}
	var changes []domain.HierarchyCodeChange
	switch {
	case c.Query("type") != "":
		changes, err = h.audit.GetChangesByType(c.Context(), domain.ChangeType(c.Query("type")), limit)
	case c.Query("trigger") != "":
		changes, err = h.audit.GetChangesByTrigger(c.Context(), domain.TriggeredBy(c.Query("trigger")), limit)
	default:
		return badRequest(c, "type or trigger is required")
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"changes": nonNil(changes), "count": len(changes)})
}

// Batch returns the rows of one batch in write order.
func (h *AuditHandler) Batch(c fiber.Ctx) error {
	id := c.Params("batchId")
	changes, err := h.audit.GetBatchChanges(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"batchId": id, "changes": nonNil(changes)})
}

func nonNil(changes []domain.HierarchyCodeChange) []domain.HierarchyCodeChange {
	if changes == nil {
		return []domain.HierarchyCodeChange{}
	}
	return changes
}
