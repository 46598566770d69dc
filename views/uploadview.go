package views

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/GrainArc/TraceMap/Transformer"
	"github.com/GrainArc/TraceMap/methods"
	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/workflows"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mozillazg/go-pinyin"
	"github.com/paulmach/orb/geojson"
)

// 几何类别对应的图层名后缀
var classSuffix = map[string]string{
	"point":   "点",
	"line":    "线",
	"polygon": "面",
}

// 混合几何文件按此顺序拆分建层
var classOrder = []string{"point", "line", "polygon"}

type ImportedLayer struct {
	LayerID  string
	Name     string
	GeomType string
	Count    int
}

// 矢量数据导入
func (uc *UserController) UploadVector(c *gin.Context) {
	projectBSM := c.PostForm("ProjectID")
	nameOverride := c.PostForm("LayerName")
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
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "请上传文件"})
		return
	}

	taskid := uuid.New().String()
	path, _ := filepath.Abs("./TempFile/" + taskid + "/" + file.Filename)
	dirpath := filepath.Dir(path)
	if err := c.SaveUploadedFile(file, path); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "文件保存失败: " + err.Error()})
		return
	}
	defer os.RemoveAll(dirpath)

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" || ext == ".rar" {
		if err := methods.Unzip(path); err != nil {
			c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "压缩包解压失败: " + err.Error()})
			return
		}
	}

	created, err := uc.importVectorDir(projectBSM, dirpath, nameOverride)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "导入失败: " + err.Error()})
		return
	}
	if len(created) == 0 {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "未找到可导入的矢量文件"})
		return
	}

	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "导入成功", Data: created})
}

// importVectorDir 扫描目录内全部矢量文件并逐个入库
func (uc *UserController) importVectorDir(projectBSM, dirpath, nameOverride string) ([]ImportedLayer, error) {
	type vectorFile struct {
		path string
		kind string
	}
	probes := []struct {
		ext  string
		kind string
	}{
		{"shp", "shp"},
		{"geojson", "geojson"},
		{"json", "geojson"},
		{"kml", "kml"},
		{"ovkml", "kml"},
		{"dxf", "dxf"},
		{"txt", "txt"},
		{"dat", "dat"},
	}
	var files []vectorFile
	for _, probe := range probes {
		for _, p := range Transformer.FindFiles(dirpath, probe.ext) {
			files = append(files, vectorFile{path: p, kind: probe.kind})
		}
	}
	if len(files) == 0 {
		return nil, nil
	}

	// 多文件按文件名排序 数字优先其余按拼音 保证建层顺序稳定
	sort.SliceStable(files, func(i, j int) bool {
		return compareCN(fileBaseName(files[i].path), fileBaseName(files[j].path))
	})
	if len(files) > 1 {
		nameOverride = ""
	}

	var created []ImportedLayer
	for _, vf := range files {
		fc, crs, err := convertVectorFile(vf.kind, vf.path)
		if err != nil {
			return nil, err
		}
		if fc == nil || len(fc.Features) == 0 {
			log.Printf("文件%s没有可导入的要素", filepath.Base(vf.path))
			continue
		}
		if crs != "" && crs != "4326" {
			fc, err = Transformer.GeoJsonTransformTo4326(fc, crs)
			if err != nil {
				return nil, err
			}
		}
		base := fileBaseName(vf.path)
		if nameOverride != "" {
			base = nameOverride
		}
		layers, err := uc.createLayersByClass(projectBSM, base, fc)
		if err != nil {
			return nil, err
		}
		created = append(created, layers...)
	}
	return created, nil
}

func convertVectorFile(kind, path string) (*geojson.FeatureCollection, string, error) {
	switch kind {
	case "shp":
		return Transformer.ConvertSHPToGeoJSON(path)
	case "geojson":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		fc, err := Transformer.ParseGeoJSONUpload(data)
		return fc, "4326", err
	case "kml":
		return Transformer.KmlToGeojson(path)
	case "dxf":
		return Transformer.ConvertDXFToGeoJSON(path)
	case "txt":
		return Transformer.TxtToGeojson(path)
	case "dat":
		return Transformer.DatToGeojson(path)
	}
	return nil, "", nil
}

// createLayersByClass 按几何类别拆分要素集建层 单一类别直接用原名
func (uc *UserController) createLayersByClass(projectBSM, base string, fc *geojson.FeatureCollection) ([]ImportedLayer, error) {
	groups := make(map[string][]workflows.NewFeature)
	for _, feature := range fc.Features {
		if feature == nil || feature.Geometry == nil {
			continue
		}
		class := workspace.GeomClass(feature.Geometry)
		if class == "" {
			continue
		}
		props := feature.Properties
		if props == nil {
			props = geojson.Properties{}
		}
		groups[class] = append(groups[class], workflows.NewFeature{
			Geometry:   feature.Geometry,
			Properties: props,
		})
	}
	if len(groups) == 0 {
		return nil, nil
	}

	var created []ImportedLayer
	for _, class := range classOrder {
		feats, ok := groups[class]
		if !ok {
			continue
		}
		name := base
		if len(groups) > 1 {
			name = base + "_" + classSuffix[class]
		}
		layerBSM, err := uc.boundary.CreateLayer(projectBSM, name, feats)
		if err != nil {
			return nil, err
		}
		created = append(created, ImportedLayer{
			LayerID:  layerBSM,
			Name:     name,
			GeomType: class,
			Count:    len(feats),
		})
	}
	return created, nil
}

func fileBaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// 提取字符串中的数字
func extractFileNumbers(s string) []int {
	re := regexp.MustCompile(`\d+`)
	matches := re.FindAllString(s, -1)
	var numbers []int
	for _, match := range matches {
		if num, err := strconv.Atoi(match); err == nil {
			numbers = append(numbers, num)
		}
	}
	return numbers
}

// 将中文转换为拼音
func chineseToPinyin(s string) string {
	a := pinyin.NewArgs()
	a.Style = pinyin.NORMAL
	a.Heteronym = false
	pinyinSlice := pinyin.Pinyin(s, a)

	var result []string
	for _, py := range pinyinSlice {
		if len(py) > 0 {
			result = append(result, py[0])
		}
	}
	return strings.Join(result, "")
}

// 检查字符串是否包含数字
func containsNumber(s string) bool {
	re := regexp.MustCompile(`\d`)
	return re.MatchString(s)
}

// 文件名比较函数 两边都带数字时按数字比较 其余按拼音
func compareCN(cnI, cnJ string) bool {
	hasNumberI := containsNumber(cnI)
	hasNumberJ := containsNumber(cnJ)

	if hasNumberI && hasNumberJ {
		numbersI := extractFileNumbers(cnI)
		numbersJ := extractFileNumbers(cnJ)

		if len(numbersI) > 0 && len(numbersJ) > 0 {
			if numbersI[0] != numbersJ[0] {
				return numbersI[0] < numbersJ[0]
			}
			minLen := len(numbersI)
			if len(numbersJ) < minLen {
				minLen = len(numbersJ)
			}
			for k := 1; k < minLen; k++ {
				if numbersI[k] != numbersJ[k] {
					return numbersI[k] < numbersJ[k]
				}
			}
			if len(numbersI) != len(numbersJ) {
				return len(numbersI) < len(numbersJ)
			}
		}
	}

	if hasNumberI && !hasNumberJ {
		return true
	}
	if !hasNumberI && hasNumberJ {
		return false
	}

	pinyinI := chineseToPinyin(cnI)
	pinyinJ := chineseToPinyin(cnJ)

	return strings.ToLower(pinyinI) < strings.ToLower(pinyinJ)
}
