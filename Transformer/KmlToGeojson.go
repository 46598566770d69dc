package Transformer

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/GrainArc/TraceMap/Transformer/KmlGeo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type Document struct {
	Name       string      `xml:"name"`
	Visibility int         `xml:"visibility"`
	Folder     Folder      `xml:"Folder"`
	Placemark  []Placemark `xml:"Placemark"`
}
type Folder struct {
	ID        string      `xml:"id,attr"`
	Name      string      `xml:"name"`
	Placemark []Placemark `xml:"Placemark"`
}
type Placemark struct {
	ID            string                `xml:"id,attr"`
	Name          string                `xml:"name"`
	Description   string                `xml:"description"`
	ExtendedData  ExtendedData          `xml:"ExtendedData"`
	LineString    *KmlGeo.LineString    `xml:"LineString"`
	Point         *KmlGeo.Point         `xml:"Point"`
	Polygon       *KmlGeo.Polygon       `xml:"Polygon"`
	MultiGeometry *KmlGeo.MultiGeometry `xml:"MultiGeometry"`
}
type ExtendedData struct {
	SchemaData SchemaData `xml:"SchemaData"`
}
type SchemaData struct {
	SimpleData []SimpleData `xml:"SimpleData"`
}
type SimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type Kml struct {
	XMLName  xml.Name `xml:"kml"`
	Document Document `xml:"Document"`
}

// StringToCoords 解析KML坐标串 "lon,lat[,alt] lon,lat ..."
func StringToCoords(Coords string) []orb.Point {
	Coordinates := strings.Fields(Coords)
	var coords []orb.Point
	for _, coord := range Coordinates {
		mycoord := strings.Split(coord, ",")
		if len(mycoord) >= 2 {
			x, _ := strconv.ParseFloat(mycoord[0], 64)
			y, _ := strconv.ParseFloat(mycoord[1], 64)
			if x > 0 && y > 0 {
				coords = append(coords, orb.Point{x, y})
			}
		}
	}
	return coords
}

// KmlToGeojson 解析KML为要素集 返回检测到的坐标系代码
func KmlToGeojson(path string) (*geojson.FeatureCollection, string, error) {
	byteValue, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("无法读取kml文件: %w", err)
	}
	var kml Kml
	if err = xml.Unmarshal(byteValue, &kml); err != nil {
		return nil, "", fmt.Errorf("kml解析失败: %w", err)
	}

	featureCollection := geojson.NewFeatureCollection()
	detectedCRS := make(map[string]bool)

	for _, item := range kml.Document.Folder.Placemark {
		appendPlacemark(featureCollection, item, detectedCRS)
	}
	for _, item := range kml.Document.Placemark {
		appendPlacemark(featureCollection, item, detectedCRS)
	}

	return featureCollection, selectCRS(detectedCRS), nil
}

func appendPlacemark(fc *geojson.FeatureCollection, item Placemark, detectedCRS map[string]bool) {
	attrs := make(map[string]interface{})
	for _, f := range item.ExtendedData.SchemaData.SimpleData {
		attrs[f.Name] = f.Value
	}
	attrs["kml_name"] = item.Name

	appendFeature := func(g orb.Geometry) {
		feature := geojson.NewFeature(g)
		feature.Properties = attrs
		fc.Append(feature)
	}

	if item.LineString != nil {
		if line := kmlLine(item.LineString.Coordinates, detectedCRS); line != nil {
			appendFeature(line)
		}
	}
	if item.Point != nil {
		if pt := kmlPoint(item.Point.Coordinates, detectedCRS); pt != nil {
			appendFeature(*pt)
		}
	}
	if item.Polygon != nil {
		if polygon := kmlPolygon(*item.Polygon, detectedCRS); polygon != nil {
			appendFeature(polygon)
		}
	}
	if item.MultiGeometry != nil {
		for _, point := range item.MultiGeometry.Point {
			if pt := kmlPoint(point.Coordinates, detectedCRS); pt != nil {
				appendFeature(*pt)
			}
		}
		for _, line := range item.MultiGeometry.LineString {
			if ls := kmlLine(line.Coordinates, detectedCRS); ls != nil {
				appendFeature(ls)
			}
		}
		for _, polygon := range item.MultiGeometry.Polygons {
			if pg := kmlPolygon(polygon, detectedCRS); pg != nil {
				appendFeature(pg)
			}
		}
	}
}

func kmlPoint(coordText string, detectedCRS map[string]bool) *orb.Point {
	Coord := strings.Split(strings.TrimSpace(coordText), ",")
	if len(Coord) < 2 {
		return nil
	}
	x, _ := strconv.ParseFloat(Coord[0], 64)
	y, _ := strconv.ParseFloat(Coord[1], 64)
	if crs := detectCRS(x); crs != "" {
		detectedCRS[crs] = true
	}
	return &orb.Point{x, y}
}

func kmlLine(coordText string, detectedCRS map[string]bool) orb.LineString {
	coords := StringToCoords(coordText)
	if len(coords) == 0 {
		return nil
	}
	for _, coord := range coords {
		if crs := detectCRS(coord[0]); crs != "" {
			detectedCRS[crs] = true
		}
	}
	return orb.LineString(coords)
}

func kmlPolygon(polygon KmlGeo.Polygon, detectedCRS map[string]bool) orb.Polygon {
	outer := StringToCoords(polygon.OuterBoundaryIs.LinearRing.Coordinates)
	if len(outer) == 0 {
		return nil
	}
	for _, coord := range outer {
		if crs := detectCRS(coord[0]); crs != "" {
			detectedCRS[crs] = true
		}
	}
	rings := []orb.Ring{orb.Ring(outer)}
	for _, inner := range polygon.InnerBoundaryIs {
		rings = append(rings, orb.Ring(StringToCoords(inner.LinearRing.Coordinates)))
	}
	return orb.Polygon(rings)
}
