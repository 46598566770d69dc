package rendersync

import (
	"sort"

	"github.com/GrainArc/TraceMap/workspace"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 点击捕捉半径 与地图捕捉保持一致
const HitTolerance = 0.0005

type indexedFeature struct {
	feature *workspace.Feature
	rank    int
	bound   orb.Bound
}

// Bounds 实现rtreego.Spatial R树要求非零尺寸 点要素补极小包围盒
func (f *indexedFeature) Bounds() rtreego.Rect {
	const epsilon = 0.0001
	w := f.bound.Max[0] - f.bound.Min[0]
	h := f.bound.Max[1] - f.bound.Min[1]
	if w < epsilon {
		w = epsilon
	}
	if h < epsilon {
		h = epsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{f.bound.Min[0], f.bound.Min[1]}, []float64{w, h})
	return rect
}

// HitIndex 可见要素的空间索引 rank大的压盖在上
type HitIndex struct {
	tree *rtreego.Rtree
}

func NewHitIndex() *HitIndex {
	return &HitIndex{tree: rtreego.NewTree(2, 25, 50)}
}

// Rebuild 按压盖顺序重建索引 layers需自底向上排列且仅含可点选图层
func (hi *HitIndex) Rebuild(layers []*workspace.Layer) {
	hi.tree = rtreego.NewTree(2, 25, 50)
	for rank, layer := range layers {
		if !layer.IsVisible {
			continue
		}
		for _, f := range layer.VisibleFeatures() {
			hi.tree.Insert(&indexedFeature{
				feature: f,
				rank:    rank,
				bound:   f.Geometry.Bound(),
			})
		}
	}
}

type hit struct {
	feature  *workspace.Feature
	rank     int
	distance float64
}

// Search 返回命中要素 最上层的排在前面
func (hi *HitIndex) Search(p orb.Point, tol float64) []*workspace.Feature {
	queryRect, err := rtreego.NewRect(
		rtreego.Point{p[0] - tol, p[1] - tol},
		[]float64{2 * tol, 2 * tol},
	)
	if err != nil {
		return nil
	}
	var hits []hit
	for _, spatial := range hi.tree.SearchIntersect(queryRect) {
		indexed := spatial.(*indexedFeature)
		d, ok := hitDistance(indexed.feature.Geometry, p, tol)
		if !ok {
			continue
		}
		hits = append(hits, hit{feature: indexed.feature, rank: indexed.rank, distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank > hits[j].rank
		}
		return hits[i].distance < hits[j].distance
	})
	out := make([]*workspace.Feature, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.feature)
	}
	return out
}

// hitDistance 面内部算命中 其余按到边界距离判定
func hitDistance(g orb.Geometry, p orb.Point, tol float64) (float64, bool) {
	switch geom := g.(type) {
	case orb.Point:
		d := planar.Distance(geom, p)
		return d, d <= tol
	case orb.MultiPoint:
		best := -1.0
		for _, pt := range geom {
			d := planar.Distance(pt, p)
			if best < 0 || d < best {
				best = d
			}
		}
		return best, best >= 0 && best <= tol
	case orb.LineString, orb.MultiLineString:
		d := planar.DistanceFrom(g, p)
		return d, d <= tol
	case orb.Polygon:
		if planar.PolygonContains(geom, p) {
			return 0, true
		}
		d := planar.DistanceFrom(g, p)
		return d, d <= tol
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, p) {
			return 0, true
		}
		d := planar.DistanceFrom(g, p)
		return d, d <= tol
	default:
		return 0, false
	}
}
