package Transformer

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CGCS2000椭球参数
const (
	semiMajorAxis = 6378137.0
	flattening    = 1.0 / 298.257222101
)

// zoneParams 解析EPSG代码对应的中央经线与东偏
// 4544为无带号的3度带(105E) 4521-4531为带号33-43的3度带
func zoneParams(epsg string) (cm float64, falseEasting float64, ok bool) {
	code, err := strconv.Atoi(epsg)
	if err != nil {
		return 0, 0, false
	}
	switch {
	case code == 4544:
		return 105, 500000, true
	case code >= 4521 && code <= 4531:
		zone := 33 + float64(code-4521)
		return zone * 3, zone*1e6 + 500000, true
	default:
		return 0, 0, false
	}
}

// GaussToWgs84 高斯投影坐标反算为经纬度
func GaussToWgs84(x, y float64, epsg string) (lon, lat float64) {
	cm, falseEasting, ok := zoneParams(epsg)
	if !ok {
		return x, y
	}
	return gaussInverse(x-falseEasting, y, cm)
}

// gaussInverse 横轴墨卡托反算 标准级数展开
func gaussInverse(easting, northing, cmDeg float64) (lon, lat float64) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	mu := northing / (semiMajorAxis * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi := math.Sin(phi1)
	cosPhi := math.Cos(phi1)
	tanPhi := math.Tan(phi1)

	n1 := semiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)
	t1 := tanPhi * tanPhi
	c1 := ep2 * cosPhi * cosPhi
	r1 := semiMajorAxis * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	d := easting / n1

	latRad := phi1 - (n1*tanPhi/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lonRad := cmDeg*math.Pi/180 + (d-(1+2*t1+c1)*d*d*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi

	return lonRad * 180 / math.Pi, latRad * 180 / math.Pi
}

// GeoJsonTransformTo4326 将投影坐标要素集整体反算为经纬度
func GeoJsonTransformTo4326(original *geojson.FeatureCollection, epsg string) *geojson.FeatureCollection {
	if epsg == "" || epsg == "4326" {
		return original
	}
	if _, _, ok := zoneParams(epsg); !ok {
		return original
	}
	for _, feature := range original.Features {
		feature.Geometry = transformGeometry(feature.Geometry, epsg)
	}
	return original
}

func transformGeometry(g orb.Geometry, epsg string) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return transformPoint(geom, epsg)
	case orb.MultiPoint:
		for i, pt := range geom {
			geom[i] = transformPoint(pt, epsg)
		}
		return geom
	case orb.LineString:
		for i, pt := range geom {
			geom[i] = transformPoint(pt, epsg)
		}
		return geom
	case orb.MultiLineString:
		for i, line := range geom {
			for j, pt := range line {
				geom[i][j] = transformPoint(pt, epsg)
			}
		}
		return geom
	case orb.Polygon:
		for i, ring := range geom {
			for j, pt := range ring {
				geom[i][j] = transformPoint(pt, epsg)
			}
		}
		return geom
	case orb.MultiPolygon:
		for i, polygon := range geom {
			for j, ring := range polygon {
				for k, pt := range ring {
					geom[i][j][k] = transformPoint(pt, epsg)
				}
			}
		}
		return geom
	default:
		return g
	}
}

func transformPoint(pt orb.Point, epsg string) orb.Point {
	lon, lat := GaussToWgs84(pt[0], pt[1], epsg)
	return orb.Point{lon, lat}
}
