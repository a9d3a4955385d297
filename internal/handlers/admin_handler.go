package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/alti-global/prism/internal/cache"
	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/prompts"
)

// AdminService exposes the read-only introspection surface.
type AdminService interface {
	CacheStats() cache.Stats
	BreakerStatus() map[string]llm.BreakerStatus
	Domains() []string
}

// AdminHandler serves the listing and stats endpoints.
type AdminHandler struct {
	service  AdminService
	registry *prompts.Registry
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(service AdminService, registry *prompts.Registry) *AdminHandler {
	return &AdminHandler{service: service, registry: registry}
}

// Domains handles GET /domains.
func (h *AdminHandler) Domains(c *gin.Context) {
	domains := h.service.Domains()
	sort.Strings(domains)
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

// Prompts handles GET /prompts.
func (h *AdminHandler) Prompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": h.registry.List()})
}

// CacheStats handles GET /stats/cache.
func (h *AdminHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.CacheStats())
}

// BreakerStats handles GET /stats/breakers.
func (h *AdminHandler) BreakerStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.BreakerStatus())
}
