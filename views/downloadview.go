package views

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/GrainArc/TraceMap/Transformer"
	"github.com/GrainArc/TraceMap/methods"
	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var downloadFormats = []string{"shp", "dxf", "csv"}

// 图层导出 shp全类型 dxf限线面 csv限点
func (uc *UserController) DownloadLayer(c *gin.Context) {
	layerBSM := c.Query("LayerID")
	format := c.Query("Format")
	if layerBSM == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "LayerID不能为空"})
		return
	}
	if !methods.IsStringInSlice(format, downloadFormats) {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "不支持的导出格式: " + format})
		return
	}

	var layer models.Layer
	if err := uc.DB.Where("bsm = ?", layerBSM).First(&layer).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "图层不存在"})
		return
	}
	fc, err := uc.layerFeatureCollection(layerBSM)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "要素读取失败: " + err.Error()})
		return
	}
	if len(fc.Features) == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "图层中没有可导出的要素"})
		return
	}

	base := methods.ConvertToInitials(layer.Name)
	if base == "" {
		base = "layer"
	}

	switch format {
	case "shp":
		uc.downloadShp(c, layer, fc, base)
	case "dxf":
		uc.downloadDxf(c, layer, fc, base)
	case "csv":
		uc.downloadCsv(c, layer, fc, base)
	}
}

func (uc *UserController) layerFeatureCollection(layerBSM string) (*geojson.FeatureCollection, error) {
	var rows []models.Feature
	if err := uc.DB.Where("layer_bsm = ?", layerBSM).Find(&rows).Error; err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		geom, err := services.DecodeGeometry(row.Geojson)
		if err != nil {
			continue
		}
		feature := geojson.NewFeature(geom)
		if len(row.Properties) > 0 {
			props := geojson.Properties{}
			if err := json.Unmarshal(row.Properties, &props); err == nil {
				feature.Properties = props
			}
		}
		fc.Append(feature)
	}
	return fc, nil
}

func (uc *UserController) downloadShp(c *gin.Context, layer models.Layer, fc *geojson.FeatureCollection, base string) {
	taskid := uuid.New().String()
	dir, _ := filepath.Abs("./Download/" + taskid)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "临时目录创建失败: " + err.Error()})
		return
	}
	defer os.RemoveAll(dir)

	shpPath := filepath.Join(dir, base+".shp")
	if err := Transformer.ConvertGeoJSONToSHP(fc, layer.GeomType, shpPath); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "shp导出失败: " + err.Error()})
		return
	}
	data, err := methods.ZipFileOut(dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "打包失败: " + err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+base+".zip")
	c.Data(http.StatusOK, "application/zip", data)
}

func (uc *UserController) downloadDxf(c *gin.Context, layer models.Layer, fc *geojson.FeatureCollection, base string) {
	if layer.GeomType == "point" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "点图层不支持导出DXF"})
		return
	}
	taskid := uuid.New().String()
	dir, _ := filepath.Abs("./Download/" + taskid)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "临时目录创建失败: " + err.Error()})
		return
	}
	defer os.RemoveAll(dir)

	dxfPath := filepath.Join(dir, base+".dxf")
	if err := methods.ConvertGeoJSONToDXF(*fc, dxfPath); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "dxf导出失败: " + err.Error()})
		return
	}
	data, err := os.ReadFile(dxfPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "dxf读取失败: " + err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+base+".dxf")
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (uc *UserController) downloadCsv(c *gin.Context, layer models.Layer, fc *geojson.FeatureCollection, base string) {
	if layer.GeomType != "point" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "仅点图层支持导出表格"})
		return
	}

	keySet := make(map[string]bool)
	for _, feature := range fc.Features {
		for key := range feature.Properties {
			keySet[key] = true
		}
	}
	header := make([]string, 0, len(keySet))
	for key := range keySet {
		header = append(header, key)
	}
	sort.Strings(header)

	latCol, lonCol := Transformer.SynthCoordColumns(header)
	outHeader := append(append([]string{}, header...), latCol, lonCol)

	var records [][]string
	for _, feature := range fc.Features {
		point, ok := featurePoint(feature.Geometry)
		if !ok {
			continue
		}
		record := make([]string, 0, len(outHeader))
		for _, key := range header {
			record = append(record, propertyCell(feature.Properties[key]))
		}
		record = append(record,
			strconv.FormatFloat(point[1], 'f', -1, 64),
			strconv.FormatFloat(point[0], 'f', -1, 64))
		records = append(records, record)
	}

	text := Transformer.WriteCsvText(outHeader, records)
	// BOM让Excel按UTF-8读中文表头
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(text)...)
	c.Header("Content-Disposition", "attachment; filename="+base+".csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func featurePoint(geom orb.Geometry) (orb.Point, bool) {
	switch g := geom.(type) {
	case orb.Point:
		return g, true
	case orb.MultiPoint:
		if len(g) > 0 {
			return g[0], true
		}
	}
	return orb.Point{}, false
}

func propertyCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
