package Transformer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DatToGeojson 解析测量点文件 每行"点名,编号,y,x"
func DatToGeojson(FilePath string) (*geojson.FeatureCollection, string, error) {
	featureCollection := geojson.NewFeatureCollection()
	file, err := os.Open(FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("无法打开dat文件: %w", err)
	}
	defer file.Close()

	detectedCRS := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		Coord := strings.Split(line, ",")
		if len(Coord) < 4 {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(Coord[2]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(Coord[3]), 64)
		if errX != nil || errY != nil {
			continue
		}
		if crs := detectCRS(x); crs != "" {
			detectedCRS[crs] = true
		}

		attrs := make(map[string]interface{})
		attrs["name"] = GbkToUtf8(Coord[0])
		feature := geojson.NewFeature(orb.Point{x, y})
		feature.Properties = attrs
		featureCollection.Append(feature)
	}

	return featureCollection, selectCRS(detectedCRS), nil
}
