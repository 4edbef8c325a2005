package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

// SimilarityHandler serves pairwise similarity reads and manual scores.
type SimilarityHandler struct {
	similarity *service.SimilarityService
}

// NewSimilarityHandler creates a new similarity handler.
func NewSimilarityHandler(s *service.SimilarityService) *SimilarityHandler {
	return &SimilarityHandler{similarity: s}
}

// Register sets up similarity routes.
func (h *SimilarityHandler) Register(router fiber.Router) {
	sim := router.Group("/similarity")
	sim.Get("/", h.Get)
	sim.Put("/", h.Store)
	sim.Get("/score", h.Score)
	sim.Get("/methods", h.Methods)
}

// Get returns the stored row for ?a&b.
func (h *SimilarityHandler) Get(c fiber.Ctx) error {
	row, err := h.similarity.GetSimilarity(c.Context(), c.Query("a"), c.Query("b"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(row)
}

// Store upserts a score; without a method the score is recorded as manual.
func (h *SimilarityHandler) Store(c fiber.Ctx) error {
	var body struct {
		NodeAID string                   `json:"nodeAId"`
		NodeBID string                   `json:"nodeBId"`
		Score   *float64                 `json:"score"`
		Method  domain.ComputationMethod `json:"method"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if body.Score == nil {
		return badRequest(c, "score is required")
	}
	if body.Method == "" {
		body.Method = domain.MethodManual
	}
	row, err := h.similarity.StoreSimilarity(c.Context(), body.NodeAID, body.NodeBID, *body.Score, body.Method)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(row)
}

// Score computes ?a&b with ?method without storing it.
func (h *SimilarityHandler) Score(c fiber.Ctx) error {
	a, b := c.Query("a"), c.Query("b")
	method := domain.ComputationMethod(c.Query("method"))
	score, err := h.similarity.ComputeSimilarity(c.Context(), a, b, method, nil)
	if err != nil {
		return fail(c, err)
	}
	if method == "" {
		method = h.similarity.DefaultMethod()
	}
	return c.JSON(fiber.Map{
		"nodeAId":  a,
		"nodeBId":  b,
		"method":   method,
		"score":    score,
		"strength": domain.Strength(score),
	})
}

// Methods lists the methods available for recompute.
func (h *SimilarityHandler) Methods(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"methods": h.similarity.Methods(), "default": h.similarity.DefaultMethod()})
}
