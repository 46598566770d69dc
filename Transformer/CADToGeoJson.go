package Transformer

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rpaloschi/dxf-go/document"
	"github.com/rpaloschi/dxf-go/entities"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	tolerance = 1e-6 // 浮点数比较容差
)

func GbkToUtf8(s string) string {
	gbkDecoder := simplifiedchinese.GBK.NewDecoder()
	utf8String, _, err := transform.String(gbkDecoder, s)
	if err != nil {
		return s
	}
	return utf8String
}

func Utf8ToGbk(input string) []byte {
	gbkEncoder := simplifiedchinese.GBK.NewEncoder()
	var output bytes.Buffer
	writer := transform.NewWriter(&output, gbkEncoder)
	if _, err := writer.Write([]byte(input)); err != nil {
		return nil
	}
	if err := writer.Close(); err != nil {
		return nil
	}
	return output.Bytes()
}

// 判断两个点是否相等（考虑浮点数误差）
func pointsEqual(p1, p2 orb.Point) bool {
	return math.Abs(p1[0]-p2[0]) < tolerance && math.Abs(p1[1]-p2[1]) < tolerance
}

// 判断线是否闭合（首尾节点相等）
func isClosedLine(coords []orb.Point) bool {
	if len(coords) < 2 {
		return false
	}
	return pointsEqual(coords[0], coords[len(coords)-1])
}

// createCadFeature 构造要素 闭合线视作面
func createCadFeature(coords []orb.Point, layerName string, forceClosed bool) *geojson.Feature {
	if len(coords) < 2 {
		return nil
	}

	if forceClosed || isClosedLine(coords) {
		closedCoords := coords
		if !pointsEqual(coords[0], coords[len(coords)-1]) {
			closedCoords = append([]orb.Point{}, coords...)
			closedCoords = append(closedCoords, coords[0])
		}
		if len(closedCoords) >= 4 {
			feature := geojson.NewFeature(orb.Polygon{closedCoords})
			feature.Properties["layername"] = GbkToUtf8(layerName)
			return feature
		}
	}

	feature := geojson.NewFeature(orb.LineString(coords))
	feature.Properties["layername"] = GbkToUtf8(layerName)
	return feature
}

// ConvertDXFToGeoJSON 解析CAD图形为线面要素 返回检测到的坐标系代码
func ConvertDXFToGeoJSON(dxfFilePath string) (*geojson.FeatureCollection, string, error) {
	file, err := os.Open(dxfFilePath)
	if err != nil {
		return nil, "", fmt.Errorf("无法打开dxf文件: %w", err)
	}
	defer file.Close()

	doc, err := document.DxfDocumentFromStream(file)
	if err != nil {
		return nil, "", fmt.Errorf("dxf解析失败: %w", err)
	}

	featureCollection := geojson.NewFeatureCollection()
	detectedCRS := make(map[string]bool)

	appendEntity := func(entity entities.Entity) {
		if polyline, ok := entity.(*entities.Polyline); ok {
			var coords []orb.Point
			for _, vertex := range polyline.Vertices {
				if crs := detectCRS(vertex.Location.X); crs != "" {
					detectedCRS[crs] = true
				}
				coords = append(coords, orb.Point{vertex.Location.X, vertex.Location.Y})
			}
			if feature := createCadFeature(coords, polyline.LayerName, false); feature != nil {
				featureCollection.Append(feature)
			}
		} else if lwpolyline, ok := entity.(*entities.LWPolyline); ok {
			var coords []orb.Point
			for _, vertex := range lwpolyline.Points {
				if crs := detectCRS(vertex.Point.X); crs != "" {
					detectedCRS[crs] = true
				}
				coords = append(coords, orb.Point{vertex.Point.X, vertex.Point.Y})
			}
			if feature := createCadFeature(coords, lwpolyline.LayerName, lwpolyline.Closed); feature != nil {
				featureCollection.Append(feature)
			}
		}
	}

	for _, entity := range doc.Entities.Entities {
		appendEntity(entity)
	}
	// 块内实体
	for _, block := range doc.Blocks {
		for _, entity := range block.Entities {
			appendEntity(entity)
		}
	}

	return featureCollection, selectCRS(detectedCRS), nil
}
