package Transformer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gitee.com/LJ_COOL/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const wgs84Prj = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// trimTrailingZeros 去除数值字符串的尾零 小数部分截到5位
func trimTrailingZeros(input string) string {
	numericRegex := regexp.MustCompile(`^\d+(\.\d+)?$`)
	if !numericRegex.MatchString(input) {
		return input
	}
	if strings.Contains(input, ".") {
		parts := strings.Split(input, ".")
		intPart := parts[0]
		fracPart := strings.TrimRight(parts[1], "0")
		if len(fracPart) == 0 {
			return intPart
		} else if len(fracPart) >= 5 {
			fracPart = fracPart[:5]
		}
		return intPart + "." + fracPart
	}
	return input
}

// SplitPoints 按parts索引将点集拆分为多个环
func SplitPoints(points []shp.Point, parts []int32) [][]shp.Point {
	var polygons [][]shp.Point
	for i, partIndex := range parts {
		start := partIndex
		var end int32
		if i < len(parts)-1 {
			end = parts[i+1]
		} else {
			end = int32(len(points))
		}
		polygons = append(polygons, points[start:end])
	}
	return polygons
}

// IsClockwise 顺时针环为外环
func IsClockwise(points []orb.Point) bool {
	sum := 0.0
	for i := 0; i < len(points)-1; i++ {
		p1 := points[i]
		p2 := points[i+1]
		sum += (p2[0] - p1[0]) * (p2[1] + p1[1])
	}
	return sum > 0
}

// splitParts 以外环为界将环索引分组 每组构成一个完整多边形
func splitParts(parts []int32, outers []bool) [][]int32 {
	var result [][]int32
	var currentGroup []int32
	groupStarted := false
	for i, part := range parts {
		if outers[i] {
			if groupStarted {
				result = append(result, currentGroup)
			}
			currentGroup = []int32{part}
			groupStarted = true
		} else if groupStarted {
			currentGroup = append(currentGroup, part)
		}
	}
	if len(currentGroup) > 0 {
		result = append(result, currentGroup)
	}
	return result
}

func createIndexSlice(n int32) []int32 {
	indexSlice := make([]int32, 0, n)
	for i := int32(0); i < n; i++ {
		indexSlice = append(indexSlice, i)
	}
	return indexSlice
}

// ConvertSHPToGeoJSON 读取shapefile为要素集 返回检测到的坐标系代码
func ConvertSHPToGeoJSON(shpfileFilePath string) (*geojson.FeatureCollection, string, error) {
	shape, err := shp.Open(shpfileFilePath)
	if err != nil {
		return nil, "", fmt.Errorf("无法打开shp文件: %w", err)
	}
	defer shape.Close()

	featureCollection := geojson.NewFeatureCollection()
	fields := shape.Fields()
	encoding := readCPGEncoding(shpfileFilePath)
	detectedCRS := make(map[string]bool)

	for shape.Next() {
		n, p := shape.Shape()
		switch s := p.(type) {
		case *shp.Point:
			featureCollection.Append(processPointGeometry(s.X, s.Y, n, shape, fields, encoding, detectedCRS))
		case *shp.PointZ:
			featureCollection.Append(processPointGeometry(s.X, s.Y, n, shape, fields, encoding, detectedCRS))
		case *shp.PointM:
			featureCollection.Append(processPointGeometry(s.X, s.Y, n, shape, fields, encoding, detectedCRS))
		case *shp.PolyLine:
			featureCollection.Append(processPolyLineGeometry(s.Points, n, shape, fields, encoding, detectedCRS))
		case *shp.PolyLineZ:
			featureCollection.Append(processPolyLineGeometry(s.Points, n, shape, fields, encoding, detectedCRS))
		case *shp.PolyLineM:
			featureCollection.Append(processPolyLineGeometry(s.Points, n, shape, fields, encoding, detectedCRS))
		case *shp.Polygon:
			featureCollection.Append(processPolygonGeometry(s.Points, s.Parts, n, shape, fields, encoding, detectedCRS))
		case *shp.PolygonZ:
			featureCollection.Append(processPolygonGeometry(s.Points, s.Parts, n, shape, fields, encoding, detectedCRS))
		case *shp.PolygonM:
			featureCollection.Append(processPolygonGeometry(s.Points, s.Parts, n, shape, fields, encoding, detectedCRS))
		}
	}

	return featureCollection, selectCRS(detectedCRS), nil
}

// readCPGEncoding 读取同名cpg文件 缺省按GBK处理
func readCPGEncoding(shpfilePath string) string {
	dir := filepath.Dir(shpfilePath)
	base := filepath.Base(shpfilePath)
	cpgPath := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".cpg")

	cpgContent, err := os.ReadFile(cpgPath)
	if err != nil {
		return "GBK"
	}
	return strings.TrimSpace(string(cpgContent))
}

// detectCRS 按横坐标量级判断坐标系
func detectCRS(x float64) string {
	switch {
	case x <= 1000:
		return "4326"
	case x >= 100000 && x <= 10000000:
		return "4544"
	case x >= 33000000 && x <= 34000000:
		return "4521"
	case x >= 34000000 && x <= 35000000:
		return "4522"
	case x >= 35000000 && x <= 36000000:
		return "4523"
	case x >= 36000000 && x <= 37000000:
		return "4524"
	case x >= 37000000 && x <= 38000000:
		return "4525"
	case x >= 38000000 && x <= 39000000:
		return "4526"
	case x >= 39000000 && x <= 40000000:
		return "4527"
	case x >= 40000000 && x <= 41000000:
		return "4528"
	case x >= 41000000 && x <= 42000000:
		return "4529"
	case x >= 42000000 && x <= 43000000:
		return "4530"
	case x >= 43000000 && x <= 44000000:
		return "4531"
	default:
		return ""
	}
}

func buildAttributes(n int, shape *shp.Reader, fields []shp.Field, encoding string) map[string]interface{} {
	attrs := make(map[string]interface{})
	for k, f := range fields {
		attrValue := shape.ReadAttribute(n, k)
		if encoding == "GBK" {
			attrs[GbkToUtf8(f.String())] = trimTrailingZeros(GbkToUtf8(attrValue))
		} else {
			attrs[f.String()] = trimTrailingZeros(attrValue)
		}
	}
	if len(fields) == 0 {
		attrs["attribute"] = "null"
	}
	return attrs
}

func processPointGeometry(x, y float64, n int, shape *shp.Reader, fields []shp.Field, encoding string, detectedCRS map[string]bool) *geojson.Feature {
	if crs := detectCRS(x); crs != "" {
		detectedCRS[crs] = true
	}
	feature := geojson.NewFeature(orb.Point{x, y})
	feature.Properties = buildAttributes(n, shape, fields, encoding)
	return feature
}

func processPolyLineGeometry(points []shp.Point, n int, shape *shp.Reader, fields []shp.Field, encoding string, detectedCRS map[string]bool) *geojson.Feature {
	coords := make([]orb.Point, len(points))
	for i, vertex := range points {
		if crs := detectCRS(vertex.X); crs != "" {
			detectedCRS[crs] = true
		}
		coords[i] = orb.Point{vertex.X, vertex.Y}
	}
	feature := geojson.NewFeature(orb.LineString(coords))
	feature.Properties = buildAttributes(n, shape, fields, encoding)
	return feature
}

func processPolygonGeometry(points []shp.Point, parts []int32, n int, shape *shp.Reader, fields []shp.Field, encoding string, detectedCRS map[string]bool) *geojson.Feature {
	var multiPolygons orb.MultiPolygon
	polygons := SplitPoints(points, parts)

	outers := make([]bool, len(polygons))
	for i, part := range polygons {
		orbPoints := make([]orb.Point, len(part))
		for j, point := range part {
			orbPoints[j] = orb.Point{point.X, point.Y}
		}
		outers[i] = IsClockwise(orbPoints)
	}

	polygonsIndex := createIndexSlice(int32(len(polygons)))
	newParts := splitParts(polygonsIndex, outers)

	for _, item := range newParts {
		var rings []orb.Ring
		for _, i := range item {
			coords := make([]orb.Point, len(polygons[i]))
			for j, vertex := range polygons[i] {
				if crs := detectCRS(vertex.X); crs != "" {
					detectedCRS[crs] = true
				}
				coords[j] = orb.Point{vertex.X, vertex.Y}
			}
			rings = append(rings, orb.Ring(coords))
		}
		multiPolygons = append(multiPolygons, orb.Polygon(rings))
	}

	feature := geojson.NewFeature(multiPolygons)
	feature.Properties = buildAttributes(n, shape, fields, encoding)
	return feature
}

// selectCRS 多坐标系混杂时按经纬度优先取
func selectCRS(detectedCRS map[string]bool) string {
	priority := []string{"4326", "4544", "4521", "4522", "4523", "4524", "4525", "4526", "4527", "4528", "4529", "4530", "4531"}
	for _, crs := range priority {
		if detectedCRS[crs] {
			return crs
		}
	}
	return ""
}

func createCpgFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("无法创建文件: %v", err)
	}
	defer file.Close()
	if _, err = file.WriteString("GBK"); err != nil {
		return fmt.Errorf("写入文件失败: %v", err)
	}
	return nil
}

func createPrjFile(prjFilePath string) error {
	return os.WriteFile(prjFilePath, []byte(wgs84Prj), 0644)
}

// ConvertGeoJSONToSHP 将单一几何类型的要素集写出为shapefile 附带cpg与prj
func ConvertGeoJSONToSHP(GeoData *geojson.FeatureCollection, geomType string, shpfileFilePath string) error {
	if len(GeoData.Features) == 0 {
		return fmt.Errorf("没有可写出的要素")
	}

	var shapeType shp.ShapeType
	switch geomType {
	case "point":
		shapeType = shp.POINT
	case "line":
		shapeType = shp.POLYLINE
	case "polygon":
		shapeType = shp.POLYGON
	default:
		return fmt.Errorf("未知的几何类型: %s", geomType)
	}

	shpFile, err := shp.Create(shpfileFilePath, shapeType)
	if err != nil {
		return fmt.Errorf("无法创建shp文件: %w", err)
	}
	defer shpFile.Close()

	base := strings.TrimSuffix(shpfileFilePath, filepath.Ext(shpfileFilePath))
	createCpgFile(base + ".cpg")
	createPrjFile(base + ".prj")

	keys := propertyKeys(GeoData.Features[0].Properties)
	fields := make([]shp.Field, 0, len(keys))
	fieldMap := make(map[string]int)
	for i, key := range keys {
		fields = append(fields, shp.StringField(Utf8ToGbk(key), 120))
		fieldMap[key] = i
	}
	shpFile.SetFields(fields)

	n := 0
	for _, feature := range GeoData.Features {
		if feature.Geometry == nil {
			continue
		}
		for _, shape := range geometryToShapes(feature.Geometry) {
			shpFile.Write(shape)
			writeAttributes(shpFile, n, feature.Properties, fieldMap)
			n++
		}
	}
	return nil
}

func propertyKeys(props geojson.Properties) []string {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func geometryToShapes(g orb.Geometry) []shp.Shape {
	switch geom := g.(type) {
	case orb.Point:
		return []shp.Shape{&shp.Point{X: geom[0], Y: geom[1]}}
	case orb.MultiPoint:
		shapes := make([]shp.Shape, 0, len(geom))
		for _, pt := range geom {
			shapes = append(shapes, &shp.Point{X: pt[0], Y: pt[1]})
		}
		return shapes
	case orb.LineString:
		return []shp.Shape{shp.NewPolyLine([][]shp.Point{lineToShpPoints(geom)})}
	case orb.MultiLineString:
		var parts [][]shp.Point
		for _, line := range geom {
			parts = append(parts, lineToShpPoints(line))
		}
		return []shp.Shape{shp.NewPolyLine(parts)}
	case orb.Polygon:
		return []shp.Shape{shp.NewPolyLine(polygonToShpParts(geom))}
	case orb.MultiPolygon:
		shapes := make([]shp.Shape, 0, len(geom))
		for _, polygon := range geom {
			shapes = append(shapes, shp.NewPolyLine(polygonToShpParts(polygon)))
		}
		return shapes
	default:
		return nil
	}
}

func lineToShpPoints(line orb.LineString) []shp.Point {
	points := make([]shp.Point, len(line))
	for i, pt := range line {
		points[i] = shp.Point{X: pt[0], Y: pt[1]}
	}
	return points
}

func polygonToShpParts(polygon orb.Polygon) [][]shp.Point {
	var parts [][]shp.Point
	for _, ring := range polygon {
		points := make([]shp.Point, len(ring))
		for i, pt := range ring {
			points[i] = shp.Point{X: pt[0], Y: pt[1]}
		}
		parts = append(parts, points)
	}
	return parts
}

func writeAttributes(shpFile *shp.Writer, n int, props geojson.Properties, fieldMap map[string]int) {
	for key, item := range props {
		fieldIndex, exists := fieldMap[key]
		if !exists {
			continue
		}
		var itemStr string
		switch v := item.(type) {
		case string:
			itemStr = v
		case float64:
			itemStr = trimTrailingZeros(fmt.Sprintf("%f", v))
		case int:
			itemStr = fmt.Sprintf("%d", v)
		case nil:
			itemStr = ""
		default:
			itemStr = fmt.Sprintf("%v", v)
		}
		if err := shpFile.WriteAttribute(n, fieldIndex, Utf8ToGbk(itemStr)); err != nil {
			fmt.Println(err.Error())
		}
	}
}
