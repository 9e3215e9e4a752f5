package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func GetProfile(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var user models.User
	if err := gormDB.Preload("Role").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving user.")
		return
	}

	var bookingCount int64
	gormDB.Model(&models.Booking{}).Where("user_id = ?", user.ID).Count(&bookingCount)

	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"booking_count": bookingCount,
	})
}
