package methods

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/entity"
)

// ConvertGeoJSONToDXF 将线面要素集写出为CAD图形 坐标保持经纬度
func ConvertGeoJSONToDXF(featureCollection geojson.FeatureCollection, outputFilename string) error {
	d := dxf.NewDrawing()
	d.Header().LtScale = 1.0

	polygonLayerReady := false
	lineLayerReady := false

	addRing := func(ring orb.Ring) {
		lwp := entity.NewLwPolyline(len(ring))
		for j, pt := range ring {
			lwp.Vertices[j] = []float64{pt[0], pt[1]}
		}
		d.AddEntity(lwp)
	}
	addLine := func(line orb.LineString) {
		lwp := entity.NewLwPolyline(len(line))
		for j, pt := range line {
			lwp.Vertices[j] = []float64{pt[0], pt[1]}
		}
		d.AddEntity(lwp)
	}

	for _, feature := range featureCollection.Features {
		switch geom := feature.Geometry.(type) {
		case orb.Polygon:
			if !polygonLayerReady {
				d.AddLayer("Polygon", color.Red, dxf.DefaultLineType, true)
				polygonLayerReady = true
			}
			d.ChangeLayer("Polygon")
			for _, ring := range geom {
				addRing(ring)
			}
		case orb.MultiPolygon:
			if !polygonLayerReady {
				d.AddLayer("Polygon", color.Red, dxf.DefaultLineType, true)
				polygonLayerReady = true
			}
			d.ChangeLayer("Polygon")
			for _, polygon := range geom {
				for _, ring := range polygon {
					addRing(ring)
				}
			}
		case orb.LineString:
			if !lineLayerReady {
				d.AddLayer("Line", color.Green, dxf.DefaultLineType, true)
				lineLayerReady = true
			}
			d.ChangeLayer("Line")
			addLine(geom)
		case orb.MultiLineString:
			if !lineLayerReady {
				d.AddLayer("Line", color.Green, dxf.DefaultLineType, true)
				lineLayerReady = true
			}
			d.ChangeLayer("Line")
			for _, line := range geom {
				addLine(line)
			}
		default:
			return fmt.Errorf("不支持导出的几何类型: %T", geom)
		}
	}

	return d.SaveAs(outputFilename)
}
