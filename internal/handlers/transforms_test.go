package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/models"
)

// julyUpload builds a single-segment daily upload covering July 4.
func julyUpload(name string) *models.CreateDatasetRequest {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	req := &models.CreateDatasetRequest{Name: name}
	for i := 0; i < 5; i++ {
		req.Points = append(req.Points, models.UploadPoint{
			Segment:   "main",
			Timestamp: start.AddDate(0, 0, i).Format(time.RFC3339),
			Values:    map[string]interface{}{"target": float64(10 * (i + 1))},
		})
	}
	return req
}

func TestApplyTransform_Holiday(t *testing.T) {
	app := setupTestApp(t)
	createDataset(t, app, julyUpload("orders"))

	body := &models.TransformRequest{Transform: "holiday", Country: "us"}
	resp, err := app.Test(jsonRequest("POST", "/v1/datasets/orders/transforms", body), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result models.TransformResponse
	decodeJSON(t, resp, &result)
	assert.Equal(t, "orders", result.Dataset)
	assert.Equal(t, "holiday", result.Transform)
	assert.Equal(t, "holiday", result.OutColumn)
	assert.Equal(t, []string{"holiday", "target"}, result.Columns)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/datasets/orders", nil))
	require.NoError(t, err)

	var ds models.DatasetResponse
	decodeJSON(t, resp, &ds)
	assert.Contains(t, ds.Columns, "holiday")
}

func TestApplyTransform_ExpandingMean(t *testing.T) {
	app := setupTestApp(t)
	createDataset(t, app, julyUpload("orders"))

	body := &models.TransformRequest{Transform: "expanding_mean"}
	resp, err := app.Test(jsonRequest("POST", "/v1/datasets/orders/transforms", body), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result models.TransformResponse
	decodeJSON(t, resp, &result)
	assert.Equal(t, "target_mean", result.OutColumn)
}

func TestApplyTransform_Twice(t *testing.T) {
	app := setupTestApp(t)
	createDataset(t, app, julyUpload("orders"))

	body := &models.TransformRequest{Transform: "holiday", Country: "us"}
	resp, err := app.Test(jsonRequest("POST", "/v1/datasets/orders/transforms", body), 10000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest("POST", "/v1/datasets/orders/transforms", body), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	errDetail := decodeError(t, resp)
	assert.Equal(t, "COLUMN_EXISTS", errDetail.Code)
}

func TestApplyTransform_UnknownTransform(t *testing.T) {
	app := setupTestApp(t)
	createDataset(t, app, julyUpload("orders"))

	body := &models.TransformRequest{Transform: "scaler"}
	resp, err := app.Test(jsonRequest("POST", "/v1/datasets/orders/transforms", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	errDetail := decodeError(t, resp)
	assert.Equal(t, "INVALID_TRANSFORM", errDetail.Code)
	assert.NotNil(t, errDetail.Details["available_transforms"])
}

func TestApplyTransform_MissingCountry(t *testing.T) {
	app := setupTestApp(t)
	createDataset(t, app, julyUpload("orders"))

	body := &models.TransformRequest{Transform: "holiday"}
	resp, err := app.Test(jsonRequest("POST", "/v1/datasets/orders/transforms", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	errDetail := decodeError(t, resp)
	assert.Equal(t, "INVALID_PARAMETER", errDetail.Code)
	assert.NotNil(t, errDetail.Details["supported_countries"])
}

func TestApplyTransform_DatasetNotFound(t *testing.T) {
	app := setupTestApp(t)

	body := &models.TransformRequest{Transform: "holiday", Country: "us"}
	resp, err := app.Test(jsonRequest("POST", "/v1/datasets/nonexistent/transforms", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	errDetail := decodeError(t, resp)
	assert.Equal(t, "DATASET_NOT_FOUND", errDetail.Code)
}

func TestApplyTransform_InvalidJSON(t *testing.T) {
	app := setupTestApp(t)
	createDataset(t, app, julyUpload("orders"))

	req := httptest.NewRequest("POST", "/v1/datasets/orders/transforms", strings.NewReader("{bad"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	errDetail := decodeError(t, resp)
	assert.Equal(t, "INVALID_JSON", errDetail.Code)
}
