package adminapi

import "github.com/gin-gonic/gin"

// RegisterRoutes wires the admin HTTP surface's five routes (spec §6):
// version, and read/write/delete over /names. There is no
// authentication layer — the trust boundary is the host the admin API
// is bound to, matching spec §1's stated non-goal of registration auth.
func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/_version", h.Version)
	r.GET("/names", h.GetNames)
	r.POST("/names", h.PostNames)
	r.DELETE("/names", h.DeleteNames)
}
