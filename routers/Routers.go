package routers

import (
	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/views"
	"github.com/gin-gonic/gin"
)

func MapRouters(r *gin.Engine) {
	UserController := views.NewUserController(models.DB)
	mapRouter := r.Group("/map")
	{
		mapRouter.POST("/AddProject", UserController.AddProject)
		mapRouter.GET("/GetProjects", UserController.GetProjects)
		mapRouter.GET("/DelProject", UserController.DelProject)
		mapRouter.GET("/GetWorkspace", UserController.GetWorkspace)

		mapRouter.POST("/UploadVector", UserController.UploadVector)
		mapRouter.GET("/DownloadLayer", UserController.DownloadLayer)

		mapRouter.POST("/UpdateLayerVisibility", UserController.UpdateLayerVisibility)
		mapRouter.POST("/UpdateFeatureVisibility", UserController.UpdateFeatureVisibility)
		mapRouter.POST("/UpdateLayerOrder", UserController.UpdateLayerOrder)
		mapRouter.POST("/ChangeLayerStyle", UserController.ChangeLayerStyle)
		mapRouter.POST("/UpdateFeatureProperties", UserController.UpdateFeatureProperties)
		mapRouter.GET("/DelLayer", UserController.DelLayer)
		mapRouter.GET("/DelFeature", UserController.DelFeature)
	}
	csvRouter := r.Group("/csv")
	{
		csvRouter.POST("/Preview", UserController.CsvPreview)
		csvRouter.POST("/Commit", UserController.CsvCommit)
	}
	georefRouter := r.Group("/georef")
	{
		georefRouter.POST("/UploadImage", UserController.UploadImage)
		georefRouter.GET("/Image/:bsm", UserController.ServeImage)
		georefRouter.GET("/RefreshImageURL", UserController.RefreshImageURL)
		georefRouter.GET("/GetImages", UserController.GetImages)
		georefRouter.GET("/DelImage", UserController.DelImage)
	}
	wsRouter := r.Group("/ws")
	{
		wsRouter.GET("/workspace", UserController.OpenWorkspace)
	}
}
