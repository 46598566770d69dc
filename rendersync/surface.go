package rendersync

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 图元命名约定 数据图层前缀加图层BSM 高亮与叠加固定ID
const (
	LayerPrefix = "layer-"
	OutlineSuff = "-outline"
	HighlightID = "highlight"
	OverlayID   = "overlay-raster"
)

// LayerSpec 渲染图层定义 Type为circle line fill
type LayerSpec struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	SourceID string                 `json:"source"`
	Paint    map[string]interface{} `json:"paint"`
}

// Surface 渲染面 由ws会话按指令流实现
type Surface interface {
	UpsertSource(id string, data *geojson.FeatureCollection) error
	UpsertLayer(spec LayerSpec) error
	SetPaint(layerID string, paint map[string]interface{}) error
	SetVisibility(layerID string, visible bool) error
	// MoveLayer beforeID为空表示移到最顶层
	MoveLayer(layerID string, beforeID string) error
	RemoveLayer(layerID string) error
	RemoveSource(id string) error
	FitBounds(b orb.Bound) error

	UpsertImageOverlay(id string, url string, corners [4][2]float64, opacity float64, visible bool) error
	RemoveImageOverlay(id string) error
	// UpsertMarker class区分标记样式 gcp csv等
	UpsertMarker(id string, class string, p orb.Point, label string) error
	RemoveMarker(id string) error
	// RemoveSketch 通知绘制工具删除临时草图
	RemoveSketch(tempID string) error
}
