package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/middleware"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

// NodeHandler serves hierarchy mutations and per-node reads.
type NodeHandler struct {
	hierarchy *service.HierarchyService
	audit     *service.AuditService
	relations *service.RelationService
}

// NewNodeHandler creates a new node handler.
func NewNodeHandler(h *service.HierarchyService, a *service.AuditService, r *service.RelationService) *NodeHandler {
	return &NodeHandler{hierarchy: h, audit: a, relations: r}
}

// Register sets up node routes.
func (h *NodeHandler) Register(router fiber.Router) {
	nodes := router.Group("/nodes")
	nodes.Post("/", h.Create)
	nodes.Post("/restructure", h.Restructure)
	nodes.Get("/:id", h.Get)
	nodes.Post("/:id/move", h.Move)
	nodes.Post("/:id/merge", h.Merge)
	nodes.Post("/:id/links", h.AddLink)
	nodes.Get("/:id/history", h.History)
	nodes.Get("/:id/related", h.Related)
	nodes.Get("/:id/backlinks", h.Backlinks)
}

// Create registers a classified node and records its creation codes.
func (h *NodeHandler) Create(c fiber.Ctx) error {
	var n domain.Node
	if err := c.Bind().JSON(&n); err != nil {
		return badRequest(c, "invalid body")
	}
	created, err := h.hierarchy.RegisterNode(c.Context(), &n, middleware.ActorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// Get returns one node.
func (h *NodeHandler) Get(c fiber.Ctx) error {
	n, err := h.hierarchy.GetNode(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(n)
}

// Move reparents a node in one hierarchy.
func (h *NodeHandler) Move(c fiber.Ctx) error {
	var body struct {
		TargetParentID  string               `json:"targetParentId"`
		TargetHierarchy domain.HierarchyType `json:"targetHierarchy"`
		Reason          string               `json:"reason"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	n, err := h.hierarchy.MoveNode(c.Context(), service.MoveRequest{
		NodeID:         c.Params("id"),
		TargetParentID: body.TargetParentID,
		HierarchyType:  body.TargetHierarchy,
		Reason:         body.Reason,
		Actor:          middleware.ActorFrom(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(n)
}

// Merge folds the body's secondary node into the path node.
func (h *NodeHandler) Merge(c fiber.Ctx) error {
	var body struct {
		SecondaryID string               `json:"secondaryId"`
		Options     service.MergeOptions `json:"options"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	body.Options.Actor = middleware.ActorFrom(c)
	n, err := h.hierarchy.MergeNodes(c.Context(), c.Params("id"), body.SecondaryID, body.Options)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(n)
}

// Restructure applies a batch of code recomputations.
func (h *NodeHandler) Restructure(c fiber.Ctx) error {
	var body struct {
		NodeIDs       []string             `json:"nodeIds"`
		Reason        string               `json:"reason"`
		HierarchyType domain.HierarchyType `json:"hierarchyType"`
		Placements    map[string]string    `json:"placements"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.hierarchy.RestructureBatch(c.Context(), service.RestructureRequest{
		NodeIDs:       body.NodeIDs,
		Reason:        body.Reason,
		HierarchyType: body.HierarchyType,
		Placements:    body.Placements,
		Actor:         middleware.ActorFrom(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

// AddLink declares a manual link from the path node.
func (h *NodeHandler) AddLink(c fiber.Ctx) error {
	var body struct {
		TargetID string `json:"targetId"`
		Label    string `json:"label"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	l, err := h.relations.AddManualLink(c.Context(), c.Params("id"), body.TargetID, body.Label)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(l)
}

// History returns a node's ledger rows, newest first.
func (h *NodeHandler) History(c fiber.Ctx) error {
	id := c.Params("id")
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return fail(c, err)
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return fail(c, err)
	}
	changes, err := h.audit.GetNodeHistory(c.Context(), id, service.HistoryFilter{
		HierarchyType: domain.HierarchyType(c.Query("hierarchyType")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"nodeId": id, "changes": nonNil(changes)})
}

// Related returns the most similar nodes.
func (h *NodeHandler) Related(c fiber.Ctx) error {
	id := c.Params("id")
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return fail(c, err)
	}
	items, err := h.relations.GetRelated(c.Context(), id, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"nodeId": id, "related": items})
}

// Backlinks returns the classified backlinks, flat and grouped.
func (h *NodeHandler) Backlinks(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return fail(c, err)
	}
	set, err := h.relations.GetBacklinks(c.Context(), c.Params("id"), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(set)
}
