package Transformer

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TxtToGeojson 解析地块坐标文本 每个地块以@结尾的属性行分隔
func TxtToGeojson(FilePath string) (*geojson.FeatureCollection, string, error) {
	featureCollection := geojson.NewFeatureCollection()
	file, err := os.Open(FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("无法打开txt文件: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	var Propertie []string
	var currentPlot []string
	var GeoText [][]string
	for _, line := range lines {
		if strings.HasSuffix(line, "@") {
			line = strings.TrimSuffix(line, "@")
			Propertie = append(Propertie, line)
			GeoText = append(GeoText, currentPlot)
			currentPlot = []string{}
		} else {
			currentPlot = append(currentPlot, line)
		}
	}
	if len(currentPlot) > 0 {
		GeoText = append(GeoText, currentPlot)
	}
	if len(GeoText) < 2 {
		return nil, "", fmt.Errorf("txt文件格式不正确")
	}
	GeoText = GeoText[1:] //去掉头文件

	detectedCRS := make(map[string]bool)
	encoding := detectEncoding(FilePath)

	for index, item := range GeoText {
		if index >= len(Propertie) {
			break
		}
		var rings []orb.Ring
		//内外环分组
		Boundarys := groupBySecondItem(item)
		for _, geos := range Boundarys {
			boundary := stringToCoords(geos)
			for _, coord := range boundary {
				if crs := detectCRS(coord[0]); crs != "" {
					detectedCRS[crs] = true
				}
			}
			rings = append(rings, boundary)
		}
		if len(rings) == 0 {
			continue
		}

		feature := geojson.NewFeature(orb.Polygon(rings))
		feature.Properties = makeProperties(Propertie[index], encoding)
		featureCollection.Append(feature)
	}

	return featureCollection, selectCRS(detectedCRS), nil
}

// groupBySecondItem 按第二列圈号将坐标行分为内外环
func groupBySecondItem(data []string) [][]string {
	groups := make(map[string][]string)
	var order []string
	for _, line := range data {
		parts := strings.Split(line, ",")
		if len(parts) > 1 {
			key := parts[1]
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], line)
		}
	}

	var result [][]string
	for _, key := range order {
		result = append(result, groups[key])
	}
	return result
}

func stringToCoords(Coordinates []string) []orb.Point {
	var coords []orb.Point
	for _, coord := range Coordinates {
		mycoord := strings.Split(coord, ",")
		if len(mycoord) >= 4 {
			x, _ := strconv.ParseFloat(mycoord[3], 64)
			y, _ := strconv.ParseFloat(mycoord[2], 64)
			if x > 0 && y > 0 {
				coords = append(coords, orb.Point{x, y})
			}
		}
	}
	return coords
}

func makeProperties(Propertie string, encoding string) map[string]interface{} {
	if strings.Contains(encoding, "GB") {
		Propertie = GbkToUtf8(Propertie)
	}
	mycoord := strings.Split(Propertie, ",")
	data := make(map[string]interface{})
	if len(mycoord) < 8 {
		return data
	}
	data["地块编号"] = mycoord[0]
	data["地块面积"] = mycoord[1]
	data["地块用途"] = mycoord[2]
	data["地类编码"] = mycoord[3]
	data["界址点数"] = mycoord[4]
	data["图幅号"] = mycoord[5]
	data["图形属性"] = mycoord[6]
	data["生产时间"] = mycoord[7]
	return data
}

func detectEncoding(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("无法读取文件: %v", err)
		return "UTF-8"
	}
	return DetectCharset(data)
}
