package views

import (
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/GrainArc/TraceMap/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 上传待配准影像 返回带时效令牌的访问链接
func (uc *UserController) UploadImage(c *gin.Context) {
	projectBSM := c.PostForm("ProjectID")
	if projectBSM == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "ProjectID不能为空"})
		return
	}
	var project models.Project
	if err := uc.DB.Where("bsm = ?", projectBSM).First(&project).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "工程不存在"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "请上传影像文件"})
		return
	}

	bsm := uuid.New().String()
	path, _ := filepath.Abs("./Upload/" + bsm + "/" + file.Filename)
	if err := c.SaveUploadedFile(file, path); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "影像保存失败: " + err.Error()})
		return
	}

	img := models.RasterImage{
		BSM:        bsm,
		ProjectBSM: projectBSM,
		Name:       file.Filename,
		Path:       path,
		Date:       time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := uc.DB.Create(&img).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "影像记录写入失败: " + err.Error()})
		return
	}

	url, err := uc.boundary.IssueSignedURL(&img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "链接签发失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "上传成功", Data: map[string]interface{}{
		"BSM":  bsm,
		"Name": file.Filename,
		"URL":  url,
	}})
}

// 签名链接取图 令牌不符或过期一律410
func (uc *UserController) ServeImage(c *gin.Context) {
	bsm := c.Param("bsm")
	token := c.Query("token")
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil || token == "" {
		c.JSON(http.StatusGone, models.Response{Code: 410, Message: "链接已失效"})
		return
	}
	if !uc.boundary.VerifySignedURL(bsm, token, expires) {
		c.JSON(http.StatusGone, models.Response{Code: 410, Message: "链接已失效"})
		return
	}
	var img models.RasterImage
	if err := uc.DB.Where("bsm = ?", bsm).First(&img).Error; err != nil {
		c.JSON(http.StatusGone, models.Response{Code: 410, Message: "链接已失效"})
		return
	}
	c.File(img.Path)
}

// 重签已上传影像的访问链接
func (uc *UserController) RefreshImageURL(c *gin.Context) {
	bsm := c.Query("BSM")
	if bsm == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "BSM不能为空"})
		return
	}
	var img models.RasterImage
	if err := uc.DB.Where("bsm = ?", bsm).First(&img).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "影像不存在"})
		return
	}
	url, err := uc.boundary.IssueSignedURL(&img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "链接签发失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "签发成功", Data: map[string]interface{}{
		"BSM": bsm,
		"URL": url,
	}})
}

func (uc *UserController) GetImages(c *gin.Context) {
	projectBSM := c.Query("ProjectID")
	if projectBSM == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "ProjectID不能为空"})
		return
	}
	var images []models.RasterImage
	if err := uc.DB.Where("project_bsm = ?", projectBSM).Order("date desc").Find(&images).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "影像查询失败: " + err.Error()})
		return
	}

	type imageInfo struct {
		BSM  string
		Name string
		Date string
	}
	list := make([]imageInfo, 0, len(images))
	for _, img := range images {
		list = append(list, imageInfo{BSM: img.BSM, Name: img.Name, Date: img.Date})
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "查询成功", Data: list})
}

func (uc *UserController) DelImage(c *gin.Context) {
	bsm := c.Query("BSM")
	if bsm == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "BSM不能为空"})
		return
	}
	if err := uc.boundary.DeleteImage(bsm); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "影像删除失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "影像删除成功"})
}
