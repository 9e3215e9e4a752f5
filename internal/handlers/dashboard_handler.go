package handlers

import (
	"net/http"

	"github.com/farellandr/canteen/internal/services"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *DashboardHandler) RecentBookings(c *gin.Context) {
	bookings, err := h.dashboard.RecentBookings(c.Request.Context())
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *DashboardHandler) PopularMeals(c *gin.Context) {
	meals, err := h.dashboard.PopularMeals(c.Request.Context())
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": meals})
}
