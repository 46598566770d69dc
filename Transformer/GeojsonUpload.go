package Transformer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// ParseGeoJSONUpload 解析上传的GeoJSON 顶层只接受Feature或FeatureCollection
func ParseGeoJSONUpload(data []byte) (*geojson.FeatureCollection, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("无效的GeoJSON格式: %w", err)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("无效的GeoJSON格式: %w", err)
		}
		if len(fc.Features) == 0 {
			return nil, errors.New("GeoJSON中没有要素数据")
		}
		return fc, nil
	case "Feature":
		feature, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("无效的GeoJSON格式: %w", err)
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(feature)
		return fc, nil
	default:
		return nil, errors.New("GeoJSON顶层类型必须为Feature或FeatureCollection")
	}
}
