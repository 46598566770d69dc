package workspace

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 图层样式
type Style struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	Size    float64 `json:"size"`
}

// Feature 工作区内存要素 几何已解码
type Feature struct {
	BSM        string
	LayerBSM   string
	IsVisible  bool
	Geometry   orb.Geometry
	Properties geojson.Properties
}

type Layer struct {
	BSM        string
	Name       string
	OrderIndex int
	IsVisible  bool
	Style      Style
	Features   []*Feature
}

// VisibleFeatures 返回图层内可见且几何类型可识别的要素
func (l *Layer) VisibleFeatures() []*Feature {
	var out []*Feature
	for _, f := range l.Features {
		if f.IsVisible && GeomClass(f.Geometry) != "" {
			out = append(out, f)
		}
	}
	return out
}

// RenderClass 由可见要素中第一个可识别几何决定渲染类型
func (l *Layer) RenderClass() string {
	for _, f := range l.Features {
		if !f.IsVisible {
			continue
		}
		if c := GeomClass(f.Geometry); c != "" {
			return c
		}
	}
	return ""
}

// Sketch 绘制完成待入库的临时几何
type Sketch struct {
	TempID   string
	Geometry orb.Geometry
}

// GCP 控制点 像素坐标与地理坐标可分别为空
type GCP struct {
	ID  int
	Px  *float64
	Py  *float64
	Lon *float64
	Lat *float64
}

func (g *GCP) ImageSet() bool { return g.Px != nil && g.Py != nil }

func (g *GCP) MapSet() bool { return g.Lon != nil && g.Lat != nil }

func (g *GCP) Complete() bool { return g.ImageSet() && g.MapSet() }

// GCPPatch 非空字段合并进对应控制点
type GCPPatch struct {
	Px  *float64
	Py  *float64
	Lon *float64
	Lat *float64
}

type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// CSVRow 预览行 Coord为空表示未落点
type CSVRow struct {
	Cells []string
	Coord *Coord
}

type CSVRowPatch struct {
	Coord *Coord
}

// Overlay 配准后的临时影像叠加 四角为地理坐标
type Overlay struct {
	URL       string
	Bounds    [4]Coord
	Opacity   float64
	IsVisible bool
}

// Selection 活动图层与选中要素
type Selection struct {
	LayerBSM    string
	FeatureBSMs []string
}

func (s *Selection) Contains(bsm string) bool {
	for _, v := range s.FeatureBSMs {
		if v == bsm {
			return true
		}
	}
	return false
}

// GeomClass 几何分类 point line polygon 未识别返回空串
func GeomClass(g orb.Geometry) string {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return "point"
	case orb.LineString, orb.MultiLineString:
		return "line"
	case orb.Polygon, orb.MultiPolygon:
		return "polygon"
	default:
		return ""
	}
}
