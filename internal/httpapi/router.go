// Package httpapi wires the gin routes of SPEC_FULL §4.7/§12:
// /healthz, /debug/controller, /route, /ingest, /stt_result. Grounded on
// the teacher's internal/http/router (router.go), collapsed from its
// resource-group layout to this module's small, flat endpoint set.
package httpapi

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/healthz", h.Healthz)
	router.GET("/debug/controller", h.DebugController)
	router.POST("/route", h.Route)
	router.POST("/ingest", h.Ingest)
	router.POST("/stt_result", h.STTResult)
}
