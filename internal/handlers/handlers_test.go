package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/farellandr/canteen/internal/helpers"
	"github.com/farellandr/canteen/internal/middleware"
	"github.com/farellandr/canteen/internal/models"
	"github.com/farellandr/canteen/internal/services"
	"github.com/farellandr/canteen/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("meal: %w", services.ErrNotFound), http.StatusNotFound},
		{services.ErrInvalidState, http.StatusConflict},
		{services.ErrInsufficientFunds, http.StatusPaymentRequired},
		{fmt.Errorf("%w: timeout", services.ErrPaymentInitiationFailed), http.StatusBadGateway},
		{services.ErrPaymentVerificationFailed, http.StatusBadRequest},
		{services.ErrDailyLimitReached, http.StatusConflict},
		{services.ErrRequestInProgress, http.StatusTooManyRequests},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			RespondWithServiceError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)

			var body helpers.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, http.StatusText(tt.want), body.Error)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, body.Message, "disk")
			}
		})
	}
}

func mealRouter(t *testing.T, uploadDir string) *gin.Engine {
	t.Helper()
	db := testutil.NewDB(t)

	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))
	r.GET("/meals", ListMeals)
	r.GET("/meals/:id", GetMeal)
	r.GET("/admin/meals", ListAllMeals)
	r.POST("/admin/meals", CreateMeal)
	r.PUT("/admin/meals/:id", UpdateMeal)
	r.DELETE("/admin/meals/:id", DeleteMeal)
	r.POST("/admin/meals/:id/image", UploadMealImage(uploadDir))
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMealCRUD(t *testing.T) {
	r := mealRouter(t, t.TempDir())

	w := doJSON(r, http.MethodPost, "/admin/meals", gin.H{"name": "Masala Dosa", "price": 40, "category": "breakfast"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Meal models.Meal `json:"meal"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Meal.Available)

	doJSON(r, http.MethodPost, "/admin/meals", gin.H{"name": "Poha", "price": 25, "category": "breakfast", "available": false})
	doJSON(r, http.MethodPost, "/admin/meals", gin.H{"name": "Chai", "price": 10, "category": "beverages"})

	var listed struct {
		Meals []models.Meal `json:"meals"`
	}
	w = doJSON(r, http.MethodGet, "/meals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Meals, 2)
	assert.Equal(t, "Chai", listed.Meals[0].Name)
	assert.Equal(t, "Masala Dosa", listed.Meals[1].Name)

	w = doJSON(r, http.MethodGet, "/admin/meals", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Meals, 3)

	path := "/admin/meals/" + created.Meal.ID.String()
	w = doJSON(r, http.MethodPut, path, gin.H{"name": "Masala Dosa", "price": "45.00", "category": "breakfast", "daily_limit": 30})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var fetched models.Meal
	w = doJSON(r, http.MethodGet, "/meals/"+created.Meal.ID.String(), nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.True(t, fetched.Price.Equal(decimal.NewFromInt(45)), fetched.Price.String())
	assert.Equal(t, 30, fetched.DailyLimit)
	assert.True(t, fetched.Available)

	w = doJSON(r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodGet, "/meals/"+created.Meal.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/meals/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// a 1x1 transparent PNG
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadMealImage(t *testing.T) {
	dir := t.TempDir()
	r := mealRouter(t, dir)

	w := doJSON(r, http.MethodPost, "/admin/meals", gin.H{"name": "Chai", "price": 10, "category": "beverages"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Meal models.Meal `json:"meal"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/admin/meals/" + created.Meal.ID.String() + "/image"

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, path, "notes.txt", []byte("just some text")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, path, "chai.png", tinyPNG))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var uploaded struct {
		Meal models.Meal `json:"meal"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	require.NotEmpty(t, uploaded.Meal.ImagePath)
	_, err := os.Stat(uploaded.Meal.ImagePath)
	assert.NoError(t, err)
}

func TestCreateMeal_RejectsBadPrices(t *testing.T) {
	r := mealRouter(t, t.TempDir())

	for _, price := range []interface{}{0, -5, "40.555"} {
		w := doJSON(r, http.MethodPost, "/admin/meals", gin.H{"name": "Idli", "price": price, "category": "breakfast"})
		assert.Equal(t, http.StatusBadRequest, w.Code, "price %v", price)
	}
}
