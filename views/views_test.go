package views

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/GrainArc/TraceMap/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

type viewEnv struct {
	router *gin.Engine
	uc     *UserController
	db     *gorm.DB
}

// newViewEnv 独立sqlite库加真实路由 测试结束清掉落盘目录
func newViewEnv(t *testing.T) *viewEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "trace.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateAllTables(db))

	uc := NewUserController(db)
	r := gin.New()
	mapRouter := r.Group("/map")
	{
		mapRouter.POST("/AddProject", uc.AddProject)
		mapRouter.GET("/GetProjects", uc.GetProjects)
		mapRouter.GET("/DelProject", uc.DelProject)
		mapRouter.GET("/GetWorkspace", uc.GetWorkspace)

		mapRouter.POST("/UploadVector", uc.UploadVector)
		mapRouter.GET("/DownloadLayer", uc.DownloadLayer)

		mapRouter.POST("/UpdateLayerVisibility", uc.UpdateLayerVisibility)
		mapRouter.POST("/UpdateFeatureVisibility", uc.UpdateFeatureVisibility)
		mapRouter.POST("/UpdateLayerOrder", uc.UpdateLayerOrder)
		mapRouter.POST("/ChangeLayerStyle", uc.ChangeLayerStyle)
		mapRouter.POST("/UpdateFeatureProperties", uc.UpdateFeatureProperties)
		mapRouter.GET("/DelLayer", uc.DelLayer)
		mapRouter.GET("/DelFeature", uc.DelFeature)
	}
	csvRouter := r.Group("/csv")
	{
		csvRouter.POST("/Preview", uc.CsvPreview)
		csvRouter.POST("/Commit", uc.CsvCommit)
	}
	georefRouter := r.Group("/georef")
	{
		georefRouter.POST("/UploadImage", uc.UploadImage)
		georefRouter.GET("/Image/:bsm", uc.ServeImage)
		georefRouter.GET("/RefreshImageURL", uc.RefreshImageURL)
		georefRouter.GET("/GetImages", uc.GetImages)
		georefRouter.GET("/DelImage", uc.DelImage)
	}

	t.Cleanup(func() {
		os.RemoveAll("Upload")
		os.RemoveAll("Download")
		os.RemoveAll("TempFile")
	})
	return &viewEnv{router: r, uc: uc, db: db}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *viewEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func getReq(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func (e *viewEnv) getJSON(t *testing.T, path string) (int, apiResponse) {
	t.Helper()
	w := e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code, decodeAPI(t, w)
}

func (e *viewEnv) postJSON(t *testing.T, path string, body interface{}) (int, apiResponse) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(t, req)
	return w.Code, decodeAPI(t, w)
}

func decodeAPI(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "响应不是JSON: %s", w.Body.String())
	return resp
}

func decodeData(t *testing.T, resp apiResponse, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, out), "data解码失败: %s", string(resp.Data))
}

// multipartUpload 组装带单个文件的表单请求
func multipartUpload(t *testing.T, path string, fields map[string]string, fileName string, fileData []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(fileData)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func seedProject(t *testing.T, db *gorm.DB, name string) models.Project {
	t.Helper()
	p := models.Project{BSM: uuid.New().String(), Name: name, Date: "2026-08-20 10:00:00"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedLayer(t *testing.T, db *gorm.DB, projectBSM, name, geomType string, order int) models.Layer {
	t.Helper()
	l := models.Layer{
		BSM:        uuid.New().String(),
		ProjectBSM: projectBSM,
		Name:       name,
		GeomType:   geomType,
		OrderIndex: order,
		IsVisible:  true,
		Color:      "#ff5733",
		Opacity:    1.0,
		Size:       6.0,
		Date:       "2026-08-20 10:00:00",
	}
	require.NoError(t, db.Create(&l).Error)
	return l
}

func seedFeature(t *testing.T, db *gorm.DB, layerBSM, geom, props string) models.Feature {
	t.Helper()
	f := models.Feature{
		BSM:       uuid.New().String(),
		LayerBSM:  layerBSM,
		IsVisible: true,
		Geojson:   []byte(geom),
	}
	if props != "" {
		f.Properties = datatypes.JSON(props)
	}
	require.NoError(t, db.Create(&f).Error)
	return f
}

func pointGeom(lon, lat float64) string {
	data, _ := json.Marshal(map[string]interface{}{
		"type":        "Point",
		"coordinates": []float64{lon, lat},
	})
	return string(data)
}
