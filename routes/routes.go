package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/Techinsane-official/perfumex-sub001/controllers"
)

// RegisterRoutes registers all catalog service routes.
func RegisterRoutes(
	r *gin.Engine,
	importCtrl *controllers.ImportController,
	scanCtrl *controllers.ScanController,
	supplierCtrl *controllers.SupplierController,
	sourceCtrl *controllers.SourceController,
) {
	imports := r.Group("/imports")
	{
		imports.POST("", importCtrl.CreateImport)
		imports.POST("/validate", importCtrl.ValidateImport)
		imports.POST("/mapping/suggest", importCtrl.SuggestMapping)
		imports.GET("", importCtrl.ListImportSessions)
		imports.GET("/jobs/:id", importCtrl.GetImportJobStatus)
		imports.POST("/restore/:backupId", importCtrl.RestoreBackup)
		imports.GET("/:id", importCtrl.GetImportSession)
		imports.POST("/:id/rollback", importCtrl.RollbackImport)
	}

	scans := r.Group("/scans")
	{
		scans.POST("", scanCtrl.StartScan)
		scans.GET("", scanCtrl.ListScanJobs)
		scans.GET("/:id", scanCtrl.GetScanJob)
		scans.POST("/:id/stop", scanCtrl.StopScanJob)
		scans.GET("/:id/results", scanCtrl.GetScanResults)
		scans.GET("/:id/opportunities", scanCtrl.GetOpportunities)
	}

	suppliers := r.Group("/suppliers")
	{
		suppliers.POST("", supplierCtrl.CreateSupplier)
		suppliers.GET("", supplierCtrl.ListSuppliers)
		suppliers.GET("/:id", supplierCtrl.GetSupplier)
		suppliers.GET("/:id/products", supplierCtrl.GetSupplierProducts)
	}

	sources := r.Group("/sources")
	{
		sources.GET("", sourceCtrl.ListSources)
		sources.PATCH("/:id", sourceCtrl.UpdateSource)
	}
}
