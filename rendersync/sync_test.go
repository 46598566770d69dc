package rendersync

import (
	"testing"

	"github.com/GrainArc/TraceMap/workspace"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSurface 记录全部渲染指令供断言
type recordSurface struct {
	ops []surfaceOp
}

type surfaceOp struct {
	kind  string
	id    string
	extra interface{}
}

func (r *recordSurface) record(kind, id string, extra interface{}) error {
	r.ops = append(r.ops, surfaceOp{kind: kind, id: id, extra: extra})
	return nil
}

func (r *recordSurface) UpsertSource(id string, data *geojson.FeatureCollection) error {
	return r.record("upsertSource", id, data)
}
func (r *recordSurface) UpsertLayer(spec LayerSpec) error {
	return r.record("upsertLayer", spec.ID, spec)
}
func (r *recordSurface) SetPaint(layerID string, paint map[string]interface{}) error {
	return r.record("setPaint", layerID, paint)
}
func (r *recordSurface) SetVisibility(layerID string, visible bool) error {
	return r.record("setVisibility", layerID, visible)
}
func (r *recordSurface) MoveLayer(layerID string, beforeID string) error {
	return r.record("moveLayer", layerID, beforeID)
}
func (r *recordSurface) RemoveLayer(layerID string) error {
	return r.record("removeLayer", layerID, nil)
}
func (r *recordSurface) RemoveSource(id string) error {
	return r.record("removeSource", id, nil)
}
func (r *recordSurface) FitBounds(b orb.Bound) error {
	return r.record("fitBounds", "", b)
}
func (r *recordSurface) UpsertImageOverlay(id string, url string, corners [4][2]float64, opacity float64, visible bool) error {
	return r.record("upsertImageOverlay", id, url)
}
func (r *recordSurface) RemoveImageOverlay(id string) error {
	return r.record("removeImageOverlay", id, nil)
}
func (r *recordSurface) UpsertMarker(id string, class string, p orb.Point, label string) error {
	return r.record("upsertMarker", id, class)
}
func (r *recordSurface) RemoveMarker(id string) error {
	return r.record("removeMarker", id, nil)
}
func (r *recordSurface) RemoveSketch(tempID string) error {
	return r.record("removeSketch", tempID, nil)
}

func (r *recordSurface) reset() {
	r.ops = nil
}

func (r *recordSurface) kinds(kind string) []surfaceOp {
	var out []surfaceOp
	for _, op := range r.ops {
		if op.kind == kind {
			out = append(out, op)
		}
	}
	return out
}

func (r *recordSurface) has(kind, id string) bool {
	for _, op := range r.ops {
		if op.kind == kind && op.id == id {
			return true
		}
	}
	return false
}

func pointLayer(bsm string, order int, pts ...orb.Point) *workspace.Layer {
	l := &workspace.Layer{
		BSM:        bsm,
		Name:       bsm,
		OrderIndex: order,
		IsVisible:  true,
		Style:      workspace.Style{Color: "#3388FF", Opacity: 1, Size: 6},
	}
	for i, p := range pts {
		l.Features = append(l.Features, &workspace.Feature{
			BSM:       bsm + "-f" + string(rune('a'+i)),
			LayerBSM:  bsm,
			IsVisible: true,
			Geometry:  p,
		})
	}
	return l
}

func newTestSync() (*Synchronizer, *recordSurface, *workspace.Workspace) {
	surface := &recordSurface{}
	store := workspace.New("p1")
	return NewSynchronizer(surface, store), surface, store
}

func TestReconcileQueuedUntilReady(t *testing.T) {
	sync, surface, store := newTestSync()
	store.SetLayers([]*workspace.Layer{pointLayer("L1", 0, orb.Point{1, 1})})

	sync.Reconcile()
	assert.Empty(t, surface.ops)

	sync.Ready()
	assert.True(t, surface.has("upsertSource", "layer-L1"))
	assert.True(t, surface.has("upsertLayer", "layer-L1"))
}

func TestZeroVisibleLayerHasNoPrimitive(t *testing.T) {
	sync, surface, store := newTestSync()
	sync.Ready()

	layer := pointLayer("L1", 0, orb.Point{1, 1})
	store.SetLayers([]*workspace.Layer{layer})
	sync.Reconcile()
	require.True(t, surface.has("upsertSource", "layer-L1"))

	// 所有要素隐藏后图元整体移除
	layer.Features[0].IsVisible = false
	surface.reset()
	sync.Reconcile()
	assert.True(t, surface.has("removeLayer", "layer-L1"))
	assert.True(t, surface.has("removeSource", "layer-L1"))

	// 重新可见后图元重建
	layer.Features[0].IsVisible = true
	surface.reset()
	sync.Reconcile()
	assert.True(t, surface.has("upsertSource", "layer-L1"))
	assert.True(t, surface.has("upsertLayer", "layer-L1"))
}

func TestStyleChangeOnlyTouchesPaint(t *testing.T) {
	sync, surface, store := newTestSync()
	sync.Ready()

	layer := pointLayer("L1", 0, orb.Point{1, 1})
	store.SetLayers([]*workspace.Layer{layer})
	sync.Reconcile()

	surface.reset()
	layer.Style.Color = "#FF0000"
	sync.Reconcile()

	assert.True(t, surface.has("setPaint", "layer-L1"))
	assert.Empty(t, surface.kinds("removeLayer"))
	assert.Empty(t, surface.kinds("upsertLayer"))
}

func TestPolygonGetsFillAndDarkenedOutline(t *testing.T) {
	sync, surface, store := newTestSync()
	sync.Ready()

	layer := &workspace.Layer{
		BSM: "L1", OrderIndex: 0, IsVisible: true,
		Style: workspace.Style{Color: "#ff0000", Opacity: 0.6, Size: 2},
		Features: []*workspace.Feature{{
			BSM: "F1", LayerBSM: "L1", IsVisible: true,
			Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		}},
	}
	store.SetLayers([]*workspace.Layer{layer})
	sync.Reconcile()

	specs := surface.kinds("upsertLayer")
	require.Len(t, specs, 2)
	fill := specs[0].extra.(LayerSpec)
	outline := specs[1].extra.(LayerSpec)
	assert.Equal(t, "fill", fill.Type)
	assert.Equal(t, "line", outline.Type)
	assert.Equal(t, "layer-L1-outline", outline.ID)
	assert.Equal(t, DarkenColor("#ff0000", outlineDarkenRatio), outline.Paint["line-color"])
}

func TestStackingOrderBottomUp(t *testing.T) {
	sync, surface, store := newTestSync()
	sync.Ready()

	bottom := pointLayer("L1", 0, orb.Point{1, 1})
	top := pointLayer("L2", 1, orb.Point{2, 2})
	store.SetLayers([]*workspace.Layer{top, bottom})
	store.SetOverlay(&workspace.Overlay{URL: "http://x", Opacity: 0.8, IsVisible: true})
	store.SetSelection("L2", []string{top.Features[0].BSM})
	sync.Reconcile()

	var order []string
	for _, op := range surface.kinds("moveLayer") {
		order = append(order, op.id)
	}
	assert.Equal(t, []string{OverlayID, "layer-L1", "layer-L2", HighlightID + "-point"}, order)
}

func TestHighlightFollowsSelection(t *testing.T) {
	sync, surface, store := newTestSync()
	sync.Ready()

	layer := pointLayer("L1", 0, orb.Point{1, 1})
	store.SetLayers([]*workspace.Layer{layer})
	store.SetSelection("L1", []string{layer.Features[0].BSM})
	sync.Reconcile()
	assert.True(t, surface.has("upsertSource", HighlightID))
	assert.True(t, surface.has("upsertLayer", HighlightID+"-point"))

	surface.reset()
	store.SetSelection("", nil)
	sync.Reconcile()
	assert.True(t, surface.has("removeLayer", HighlightID+"-point"))
	assert.True(t, surface.has("removeSource", HighlightID))
}

func TestOverlayRemovedWithStore(t *testing.T) {
	sync, surface, store := newTestSync()
	sync.Ready()

	store.SetOverlay(&workspace.Overlay{URL: "http://x", Opacity: 0.8, IsVisible: true})
	sync.Reconcile()
	assert.True(t, surface.has("upsertImageOverlay", OverlayID))

	surface.reset()
	store.ClearOverlay()
	sync.Reconcile()
	assert.True(t, surface.has("removeImageOverlay", OverlayID))
}

func TestFitBoundsPrefersActiveLayer(t *testing.T) {
	sync, surface, store := newTestSync()
	sync.Ready()

	a := pointLayer("L1", 0, orb.Point{0, 0})
	b := pointLayer("L2", 1, orb.Point{100, 50})
	store.SetLayers([]*workspace.Layer{a, b})
	store.SetSelection("L2", nil)
	sync.Reconcile()

	fits := surface.kinds("fitBounds")
	require.NotEmpty(t, fits)
	bound := fits[len(fits)-1].extra.(orb.Bound)
	assert.Equal(t, orb.Point{100, 50}, bound.Min)
	assert.Equal(t, orb.Point{100, 50}, bound.Max)
}

func TestDarkenColor(t *testing.T) {
	assert.Equal(t, "#b20000", DarkenColor("#FF0000", 0.7))
	assert.Equal(t, "#000000", DarkenColor("#000000", 0.7))
	assert.Equal(t, "#b2b2b2", DarkenColor("#fff", 0.7))
	// 解析失败原样返回
	assert.Equal(t, "not-a-color", DarkenColor("not-a-color", 0.7))
}
