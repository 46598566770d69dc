package views

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/GrainArc/TraceMap/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// 工程管理

func (uc *UserController) AddProject(c *gin.Context) {
	var req struct {
		Name string
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "参数错误: " + err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "工程名称不能为空"})
		return
	}

	project := models.Project{
		BSM:  uuid.New().String(),
		Name: req.Name,
		Date: time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := uc.DB.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "工程创建失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "工程创建成功", Data: project})
}

func (uc *UserController) GetProjects(c *gin.Context) {
	var projects []models.Project
	if err := uc.DB.Order("date desc").Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "工程查询失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "查询成功", Data: projects})
}

func (uc *UserController) DelProject(c *gin.Context) {
	bsm := c.Query("BSM")
	if bsm == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "BSM不能为空"})
		return
	}
	var project models.Project
	if err := uc.DB.Where("bsm = ?", bsm).First(&project).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "工程不存在"})
		return
	}

	layerSub := uc.DB.Model(&models.Layer{}).Select("bsm").Where("project_bsm = ?", bsm)
	uc.DB.Where("layer_bsm IN (?)", layerSub).Delete(&models.Feature{})
	uc.DB.Where("project_bsm = ?", bsm).Delete(&models.Layer{})

	// 配准影像连同磁盘文件一起清掉
	var images []models.RasterImage
	uc.DB.Where("project_bsm = ?", bsm).Find(&images)
	for _, img := range images {
		os.Remove(img.Path)
	}
	uc.DB.Where("project_bsm = ?", bsm).Delete(&models.RasterImage{})

	if err := uc.DB.Delete(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "工程删除失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "工程删除成功"})
}

// 工作区数据

type WorkspaceFeature struct {
	BSM        string
	IsVisible  bool
	Geometry   json.RawMessage
	Properties datatypes.JSON
}

type WorkspaceLayer struct {
	models.Layer
	Features []WorkspaceFeature
}

func (uc *UserController) GetWorkspace(c *gin.Context) {
	projectBSM := c.Query("ProjectID")
	if projectBSM == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "ProjectID不能为空"})
		return
	}
	var project models.Project
	if err := uc.DB.Where("bsm = ?", projectBSM).First(&project).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "工程不存在"})
		return
	}

	var layers []models.Layer
	if err := uc.DB.Where("project_bsm = ?", projectBSM).Order("order_index asc").Find(&layers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "图层查询失败: " + err.Error()})
		return
	}

	result := make([]WorkspaceLayer, 0, len(layers))
	for _, layer := range layers {
		var rows []models.Feature
		uc.DB.Where("layer_bsm = ?", layer.BSM).Find(&rows)
		features := make([]WorkspaceFeature, 0, len(rows))
		for _, row := range rows {
			features = append(features, WorkspaceFeature{
				BSM:        row.BSM,
				IsVisible:  row.IsVisible,
				Geometry:   json.RawMessage(row.Geojson),
				Properties: row.Properties,
			})
		}
		result = append(result, WorkspaceLayer{Layer: layer, Features: features})
	}

	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "查询成功", Data: map[string]interface{}{
		"Project": project,
		"Layers":  result,
	}})
}

// 图层与要素的窄更新

func (uc *UserController) UpdateLayerVisibility(c *gin.Context) {
	var req struct {
		LayerID   string
		IsVisible *bool
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "参数错误: " + err.Error()})
		return
	}
	if req.LayerID == "" || req.IsVisible == nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "LayerID与IsVisible不能为空"})
		return
	}
	result := uc.DB.Model(&models.Layer{}).Where("bsm = ?", req.LayerID).Update("is_visible", *req.IsVisible)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "更新失败: " + result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "图层不存在"})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "更新成功"})
}

func (uc *UserController) UpdateFeatureVisibility(c *gin.Context) {
	var req struct {
		FeatureID string
		IsVisible *bool
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "参数错误: " + err.Error()})
		return
	}
	if req.FeatureID == "" || req.IsVisible == nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "FeatureID与IsVisible不能为空"})
		return
	}
	result := uc.DB.Model(&models.Feature{}).Where("bsm = ?", req.FeatureID).Update("is_visible", *req.IsVisible)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "更新失败: " + result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "要素不存在"})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "更新成功"})
}

func (uc *UserController) UpdateLayerOrder(c *gin.Context) {
	var req []struct {
		LayerID    string
		OrderIndex int
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "参数错误: " + err.Error()})
		return
	}
	if len(req) == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "排序列表不能为空"})
		return
	}
	for _, item := range req {
		if err := uc.DB.Model(&models.Layer{}).Where("bsm = ?", item.LayerID).
			Update("order_index", item.OrderIndex).Error; err != nil {
			c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "排序更新失败: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "排序更新成功"})
}

func (uc *UserController) ChangeLayerStyle(c *gin.Context) {
	var req struct {
		LayerID string
		Color   string
		Opacity *float64
		Size    *float64
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "参数错误: " + err.Error()})
		return
	}
	if req.LayerID == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "LayerID不能为空"})
		return
	}

	updates := make(map[string]interface{})
	if req.Color != "" {
		updates["color"] = req.Color
	}
	if req.Opacity != nil {
		updates["opacity"] = *req.Opacity
	}
	if req.Size != nil {
		updates["size"] = *req.Size
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "没有可更新的样式字段"})
		return
	}

	result := uc.DB.Model(&models.Layer{}).Where("bsm = ?", req.LayerID).Updates(updates)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "样式更新失败: " + result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "图层不存在"})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "样式更新成功"})
}

func (uc *UserController) DelLayer(c *gin.Context) {
	layerBSM := c.Query("LayerID")
	if layerBSM == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "LayerID不能为空"})
		return
	}
	var layer models.Layer
	if err := uc.DB.Where("bsm = ?", layerBSM).First(&layer).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "图层不存在"})
		return
	}

	uc.DB.Where("layer_bsm = ?", layerBSM).Delete(&models.Feature{})
	if err := uc.DB.Delete(&layer).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "图层删除失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "图层删除成功"})
}

func (uc *UserController) DelFeature(c *gin.Context) {
	featureBSM := c.Query("FeatureID")
	if featureBSM == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "FeatureID不能为空"})
		return
	}
	result := uc.DB.Where("bsm = ?", featureBSM).Delete(&models.Feature{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "要素删除失败: " + result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "要素不存在"})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "要素删除成功"})
}

func (uc *UserController) UpdateFeatureProperties(c *gin.Context) {
	var req struct {
		FeatureID  string
		Properties map[string]interface{}
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "参数错误: " + err.Error()})
		return
	}
	if req.FeatureID == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "FeatureID不能为空"})
		return
	}

	data, err := json.Marshal(req.Properties)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "属性格式错误: " + err.Error()})
		return
	}
	result := uc.DB.Model(&models.Feature{}).Where("bsm = ?", req.FeatureID).Update("properties", datatypes.JSON(data))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "属性更新失败: " + result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "要素不存在"})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "属性更新成功"})
}
