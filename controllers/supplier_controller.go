package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/services"
)

// SupplierController handles HTTP requests for supplier management.
type SupplierController struct {
	supplierService services.SupplierService
	validator       *RequestValidator
	timeout         time.Duration
}

// NewSupplierController creates a new SupplierController.
func NewSupplierController(svc services.SupplierService, validator *RequestValidator) *SupplierController {
	return &SupplierController{
		supplierService: svc,
		validator:       validator,
		timeout:         DefaultContextTimeout,
	}
}

// CreateSupplier handles POST /suppliers
func (sc *SupplierController) CreateSupplier(c *gin.Context) {
	var req models.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	supplier, svcErr := sc.supplierService.CreateSupplier(ctx, &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

// GetSupplier handles GET /suppliers/:id
func (sc *SupplierController) GetSupplier(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supplier ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	supplier, svcErr := sc.supplierService.GetSupplier(ctx, id)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, supplier)
}

// ListSuppliers handles GET /suppliers
func (sc *SupplierController) ListSuppliers(c *gin.Context) {
	page, limit, err := sc.validator.ParsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	suppliers, total, svcErr := sc.supplierService.ListSuppliers(ctx, page, limit)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"suppliers": suppliers,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// GetSupplierProducts handles GET /suppliers/:id/products
func (sc *SupplierController) GetSupplierProducts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supplier ID"})
		return
	}

	page, limit, err := sc.validator.ParsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	products, total, svcErr := sc.supplierService.ListProducts(ctx, id, page, limit)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}
