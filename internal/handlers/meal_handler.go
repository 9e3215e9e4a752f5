package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/models"
	"github.com/farellandr/canteen/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MealRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" binding:"required"`
	Available   *bool           `json:"available"`
	DailyLimit  *int            `json:"daily_limit" binding:"omitempty,min=0"`
}

func (req *MealRequest) validate() string {
	if !req.Price.IsPositive() {
		return "Price must be greater than zero."
	}
	if !req.Price.Equal(req.Price.Round(2)) {
		return "Price can have at most two decimal places."
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Category) == "" {
		return "Name and category are required."
	}
	return ""
}

func ListMeals(c *gin.Context) {
	listMeals(c, true)
}

func ListAllMeals(c *gin.Context) {
	listMeals(c, false)
}

func listMeals(c *gin.Context, onlyAvailable bool) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	query := gormDB.Model(&models.Meal{})
	if onlyAvailable {
		query = query.Where("available = ?", true)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var meals []models.Meal
	if err := query.Order("category ASC").Order("name ASC").Find(&meals).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving meals.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals": meals,
		"total": len(meals),
	})
}

func GetMeal(c *gin.Context) {
	mealID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var meal models.Meal
	if err := gormDB.Where("id = ?", mealID).First(&meal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Meal not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving meal.")
		return
	}

	c.JSON(http.StatusOK, meal)
}

func CreateMeal(c *gin.Context) {
	var req MealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	if msg := req.validate(); msg != "" {
		helpers.RespondWithError(c, http.StatusBadRequest, msg)
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	meal := models.Meal{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		Available:   true,
	}
	if req.Available != nil {
		meal.Available = *req.Available
	}
	if req.DailyLimit != nil {
		meal.DailyLimit = *req.DailyLimit
	}

	if err := gormDB.Create(&meal).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create meal.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Meal created successfully.",
		"meal":    meal,
	})
}

// UpdateMeal never touches the sales counters. Existing bookings keep the
// price they were made at.
func UpdateMeal(c *gin.Context) {
	mealID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req MealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	if msg := req.validate(); msg != "" {
		helpers.RespondWithError(c, http.StatusBadRequest, msg)
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var meal models.Meal
	if err := gormDB.Where("id = ?", mealID).First(&meal).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Meal not found.")
		return
	}

	updates := map[string]interface{}{
		"name":        strings.TrimSpace(req.Name),
		"description": req.Description,
		"price":       req.Price,
		"category":    strings.TrimSpace(req.Category),
	}
	if req.Available != nil {
		updates["available"] = *req.Available
	}
	if req.DailyLimit != nil {
		updates["daily_limit"] = *req.DailyLimit
	}

	if err := gormDB.Model(&meal).Updates(updates).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update meal.")
		return
	}
	if err := gormDB.Where("id = ?", mealID).First(&meal).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving meal.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Meal updated successfully.",
		"meal":    meal,
	})
}

func DeleteMeal(c *gin.Context) {
	mealID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var meal models.Meal
	if err := gormDB.Where("id = ?", mealID).First(&meal).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Meal not found.")
		return
	}

	var bookings int64
	if err := gormDB.Model(&models.Booking{}).Where("meal_id = ?", meal.ID).Count(&bookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error checking meal bookings.")
		return
	}
	if bookings > 0 {
		helpers.RespondWithError(c, http.StatusConflict, "Meal has bookings. Mark it unavailable instead.")
		return
	}

	if err := gormDB.Delete(&meal).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete meal.")
		return
	}
	_ = helpers.DeleteFile(meal.ImagePath)

	c.JSON(http.StatusOK, gin.H{
		"message": "Meal deleted successfully.",
	})
}

// UploadMealImage stores the multipart "image" field under uploadDir and
// replaces the meal's previous image.
func UploadMealImage(uploadDir string) gin.HandlerFunc {
	uploadConfig := helpers.DefaultImageUploadConfig
	uploadConfig.UploadBasePath = uploadDir

	return func(c *gin.Context) {
		mealID, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("image")
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Image file is required.")
			return
		}

		db, exists := c.Get("db")
		if !exists {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
			return
		}
		gormDB := db.(*gorm.DB)

		var meal models.Meal
		if err := gormDB.Where("id = ?", mealID).First(&meal).Error; err != nil {
			helpers.RespondWithError(c, http.StatusNotFound, "Meal not found.")
			return
		}

		imagePath, err := helpers.UploadFile(c, fileHeader, "meals", uploadConfig)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}

		if err := gormDB.Model(&meal).Update("image_path", imagePath).Error; err != nil {
			_ = helpers.DeleteFile(imagePath)
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update meal image.")
			return
		}
		previous := meal.ImagePath
		meal.ImagePath = imagePath
		if previous != "" && previous != imagePath {
			_ = helpers.DeleteFile(previous)
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Meal image uploaded successfully.",
			"meal":    meal,
		})
	}
}

func ResetDailyCounts(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		reset, err := catalog.ResetDailyCounts(c.Request.Context())
		if err != nil {
			RespondWithServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":     "Daily counts reset successfully.",
			"meals_reset": reset,
		})
	}
}
