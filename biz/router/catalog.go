package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/lumenforge/hdriatlas/biz/handler"
	"github.com/lumenforge/hdriatlas/biz/middleware"
)

// RegisterCatalogRoutes configures HTTP routes for the asset catalog.
func RegisterCatalogRoutes(r *server.Hertz, h *handler.CatalogHandler) {
	if h == nil {
		return
	}

	v1 := r.Group("/api/v1")
	writeLock := middleware.WriteLockMw()

	v1.POST("/assets", append(writeLock, h.IngestAssets)...)
	v1.GET("/assets", h.ListAssets)
	v1.GET("/assets/:id", h.GetAsset)
	v1.PUT("/assets/:id/name", append(writeLock, h.RenameAsset)...)
	v1.PUT("/assets/:id/tags", append(writeLock, h.SetAssetTags)...)
	v1.DELETE("/assets/:id", append(writeLock, h.DeleteAsset)...)
	v1.GET("/assets/:id/file", h.GetAssetFile)
	v1.GET("/assets/:id/preview", h.GetAssetPreview)
	v1.GET("/assets/:id/compare/:other", h.CompareAssets)

	v1.GET("/tags", h.ListTags)
	v1.POST("/tags", append(writeLock, h.AddTag)...)
	v1.DELETE("/tags/:name", append(writeLock, h.RemoveTag)...)

	r.GET("/ping", handler.Ping)
}
