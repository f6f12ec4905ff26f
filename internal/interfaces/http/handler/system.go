package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// SystemHandler answers probes and reports what build is running
type SystemHandler struct {
	responder
	info    BuildInfo
	started time.Time
}

// BuildInfo is the body of GET /system/info
type BuildInfo struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// NewSystemHandler reports name and version, with uptime counted from now
func NewSystemHandler(name, version string) *SystemHandler {
	now := time.Now()
	return &SystemHandler{
		info:    BuildInfo{Name: name, Version: version, GoVersion: runtime.Version(), StartedAt: now.UTC()},
		started: now,
	}
}

// Healthz godoc. It does not touch dependencies.
// @ID           healthz
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /healthz [get]
func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSystemInfo godoc
// @ID           getSystemInfo
// @Summary      Build information and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[BuildInfo]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := h.info
	info.Uptime = time.Since(h.started).Truncate(time.Second).String()
	h.ok(c, info)
}
