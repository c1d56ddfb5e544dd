package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"hosted-payment-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error envelope. The four-digit code travels
// as a string ("1001", "3409"), matching the merchant API contract.
type ErrorResponse struct {
	Success   bool              `json:"success"`
	ErrorCode string            `json:"errorCode"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}

// OK sends a 200 response with the payload fields merged into the success
// envelope: {"success": true, ...payload}.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope(data))
}

// Created sends a 201 response with the merged success envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope(data))
}

// Error sends an error response. *apperror.AppError maps to its code and
// HTTP status; anything else becomes a 9999 / 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		Success:   false,
		ErrorCode: fmt.Sprintf("%04d", appErr.Code),
		Message:   appErr.Message,
		Details:   appErr.Details,
	})
}

// envelope flattens data's JSON fields next to "success". Numbers are decoded
// as json.Number so amounts round-trip without float conversion.
func envelope(data interface{}) map[string]interface{} {
	m := map[string]interface{}{"success": true}
	if data == nil {
		return m
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return m
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	_ = dec.Decode(&m)
	m["success"] = true
	return m
}
