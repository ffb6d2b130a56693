package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/models"
)

type FreelancerHandler struct {
	DB *gorm.DB
}

// GetFreelancer exposes a seller's public profile: name, cumulative sales
// statistics and their catalog. Email and password hash stay private.
func (h *FreelancerHandler) GetFreelancer(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid freelancer id")
	}

	var seller models.User
	if err := h.DB.First(&seller, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "freelancer not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if seller.Role != models.RoleFreelancer {
		return echo.NewHTTPError(http.StatusNotFound, "freelancer not found")
	}

	var products []models.Product
	if err := h.DB.Where("seller_id = ?", seller.ID).Order("created_at DESC").Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":             seller.ID,
		"name":           seller.Name,
		"total_earnings": seller.TotalEarnings,
		"total_sales":    seller.TotalSales,
		"products":       products,
	})
}
