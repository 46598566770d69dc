package views

import (
	"io"
	"net/http"

	"github.com/GrainArc/TraceMap/Transformer"
	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/workflows"
	"github.com/gin-gonic/gin"
)

// 预览最多返回的数据行数
const csvPreviewLimit = 50

// 表格预览 识别编码并返回表头与前若干行
func (uc *UserController) CsvPreview(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "请上传文件"})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "文件读取失败: " + err.Error()})
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "文件读取失败: " + err.Error()})
		return
	}

	header, records, text, err := Transformer.ReadCsvBytes(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "表格解析失败: " + err.Error()})
		return
	}

	preview := records
	if len(preview) > csvPreviewLimit {
		preview = preview[:csvPreviewLimit]
	}

	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "解析成功", Data: map[string]interface{}{
		"FileName":  file.Filename,
		"Header":    header,
		"Rows":      preview,
		"TotalRows": len(records),
		"CsvText":   text,
	}})
}

// 表格入库 经纬度非法的行丢弃只计数
func (uc *UserController) CsvCommit(c *gin.Context) {
	var req struct {
		ProjectID string
		LayerName string
		CsvText   string
		LatCol    string
		LonCol    string
		Included  []string
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "参数错误: " + err.Error()})
		return
	}
	if req.ProjectID == "" || req.LayerName == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "ProjectID与LayerName不能为空"})
		return
	}
	if req.CsvText == "" || req.LatCol == "" || req.LonCol == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "表格内容与经纬度列不能为空"})
		return
	}
	var project models.Project
	if err := uc.DB.Where("bsm = ?", req.ProjectID).First(&project).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "工程不存在"})
		return
	}

	stats, err := uc.boundary.CommitCsv(workflows.CsvCommitArgs{
		ProjectBSM: req.ProjectID,
		LayerName:  req.LayerName,
		CsvText:    req.CsvText,
		LatCol:     req.LatCol,
		LonCol:     req.LonCol,
		Included:   req.Included,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "表格入库失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "入库成功", Data: map[string]interface{}{
		"LayerID":  stats.LayerBSM,
		"Inserted": stats.Inserted,
		"Dropped":  stats.Dropped,
	}})
}
