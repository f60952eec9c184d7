package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dnswall-io/dnswall/internal/registry"
)

// DefaultRegisterTTL is the TTL applied to items the admin API writes
// directly (as opposed to a reconciler heartbeat, which supplies its
// own TTL). It matches the registry lifecycle default from spec §3.
const DefaultRegisterTTL = 60 * time.Second

// Handler holds the dependencies the admin HTTP surface needs: the
// Registry it reads and writes through, and the version string it
// reports at /_version.
type Handler struct {
	Registry *registry.Registry
	Version  string
}

// NewHandler builds a Handler. An empty version defaults to "dev".
func NewHandler(reg *registry.Registry, version string) *Handler {
	if version == "" {
		version = "dev"
	}
	return &Handler{Registry: reg, Version: version}
}

// Version handles GET /_version.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{Version: h.Version})
}

// GetNames handles GET /names and GET /names?name=<fqdn>. Without a
// name query parameter it returns every DomainDetail under the
// registry's base path (diagnostics/listing, per spec §4.1 lookall);
// with one it returns that name's single resolved DomainDetail.
func (h *Handler) GetNames(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		details, err := h.Registry.LookAll(c.Request.Context(), "")
		if err != nil {
			respondBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, details)
		return
	}

	detail, err := h.Registry.Lookup(c.Request.Context(), name)
	if err != nil {
		respondBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// PostNames handles POST /names?name=<fqdn> with a JSON array of
// DomainItem as the body. Each item is registered under name with the
// admin API's default TTL.
func (h *Handler) PostNames(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name query parameter is required"})
		return
	}

	var items []registry.DomainItem
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	for _, item := range items {
		if err := h.Registry.Register(c.Request.Context(), name, item, DefaultRegisterTTL); err != nil {
			respondBackendError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// DeleteNames handles DELETE /names?name=<fqdn>, unregistering every
// item registered directly under name. Unlike GET, this does not
// follow wildcard fallback: deleting "a.b.c.d" never touches items
// actually stored under "*.b.c.d".
func (h *Handler) DeleteNames(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name query parameter is required"})
		return
	}

	detail, err := h.Registry.LookupExact(c.Request.Context(), name)
	if err != nil {
		respondBackendError(c, err)
		return
	}
	for _, item := range detail.Items {
		if err := h.Registry.Unregister(c.Request.Context(), name, item); err != nil {
			respondBackendError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// respondBackendError maps a Registry error onto an HTTP status: a
// value error (bad name, unsupported pattern) is the caller's fault;
// anything else is a backend failure.
func respondBackendError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, registry.ErrBackendValue) {
		status = http.StatusBadRequest
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
