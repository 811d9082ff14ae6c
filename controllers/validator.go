package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Validation constants
const (
	MaxPageSize   = 100
	MaxPageNumber = 1000000
	MaxUploadSize = 50 * 1024 * 1024 // 50MB
)

// Allowed spreadsheet uploads, by extension and content type.
var (
	allowedSpreadsheetExtensions = map[string]bool{
		".csv":  true,
		".txt":  true,
		".xlsx": true,
		".xlsm": true,
	}

	allowedSpreadsheetContentTypes = map[string]bool{
		"text/csv":        true,
		"application/csv": true,
		"text/plain":      true,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
		"application/vnd.ms-excel.sheet.macroenabled.12":                    true,
	}
)

// RequestValidator handles all input validation
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validate: validator.New(),
	}
}

// ParsePagination validates and parses pagination parameters
func (rv *RequestValidator) ParsePagination(c *gin.Context) (int, int, error) {
	pageStr := c.DefaultQuery("page", "1")
	limitStr := c.DefaultQuery("limit", "20")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		return 0, 0, errors.New("invalid page number")
	}
	if page > MaxPageNumber {
		page = MaxPageNumber
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		return 0, 0, errors.New("invalid page size")
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	return page, limit, nil
}

// IsValidSpreadsheetFile checks if the upload is a supported spreadsheet.
func (rv *RequestValidator) IsValidSpreadsheetFile(file *multipart.FileHeader) bool {
	if allowedSpreadsheetContentTypes[strings.ToLower(file.Header.Get("Content-Type"))] {
		return true
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	return allowedSpreadsheetExtensions[ext]
}

// ValidateFileSize checks if file size is within limits
func (rv *RequestValidator) ValidateFileSize(file *multipart.FileHeader) error {
	if file.Size > MaxUploadSize {
		return fmt.Errorf("file too large (max %dMB)", MaxUploadSize/(1024*1024))
	}
	return nil
}

// ValidateStruct runs binding-style validation on an already decoded value.
func (rv *RequestValidator) ValidateStruct(v interface{}) error {
	return rv.validate.Struct(v)
}
