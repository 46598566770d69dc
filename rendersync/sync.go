package rendersync

import (
	"log"
	"sort"

	"github.com/GrainArc/TraceMap/workspace"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 高亮样式固定 不随图层样式变化
const (
	highlightColor   = "#00FFFF"
	highlightOpacity = 0.45
	highlightWidth   = 3.0
	highlightRadius  = 7.0
)

type managedEntry struct {
	renderClass string
	style       workspace.Style
	visible     bool
	features    []*workspace.Feature
}

type target struct {
	layer *workspace.Layer
	class string
	feats []*workspace.Feature
}

// Synchronizer 对照工作区状态与渲染面图元 增量下发指令
type Synchronizer struct {
	surface Surface
	store   *workspace.Workspace

	ready   bool
	pending bool

	managed       map[string]*managedEntry
	highlight     map[string]bool
	highlightSrc  bool
	lastHighlight []*workspace.Feature
	lastOverlay   *workspace.Overlay
	index         *HitIndex
}

func NewSynchronizer(surface Surface, store *workspace.Workspace) *Synchronizer {
	return &Synchronizer{
		surface:   surface,
		store:     store,
		managed:   make(map[string]*managedEntry),
		highlight: make(map[string]bool),
		index:     NewHitIndex(),
	}
}

// Ready 渲染面就绪 补发就绪前积压的同步
func (s *Synchronizer) Ready() {
	if s.ready {
		return
	}
	s.ready = true
	if s.pending {
		s.pending = false
		s.Reconcile()
	}
}

// Reconcile 全量对账一次 幂等 以最新状态为准
func (s *Synchronizer) Reconcile() {
	if !s.ready {
		s.pending = true
		return
	}

	layers := sortedLayers(s.store.Layers)
	var targets []target
	wanted := make(map[string]bool)
	for _, l := range layers {
		feats := l.VisibleFeatures()
		if len(feats) == 0 {
			continue
		}
		class := l.RenderClass()
		if class == "" {
			continue
		}
		targets = append(targets, target{layer: l, class: class, feats: feats})
		wanted[l.BSM] = true
	}

	structural := false

	var stale []string
	for bsm := range s.managed {
		if !wanted[bsm] {
			stale = append(stale, bsm)
		}
	}
	sort.Strings(stale)
	for _, bsm := range stale {
		s.removeLayerPrimitives(bsm, s.managed[bsm].renderClass)
		delete(s.managed, bsm)
		structural = true
	}

	for _, t := range targets {
		if s.applyLayer(t.layer, t.class, t.feats) {
			structural = true
		}
	}

	s.syncHighlight()
	s.syncOverlay()
	s.applyStacking(targets)

	if structural {
		s.fitBounds(targets)
	}

	s.index.Rebuild(layers)
}

// HitTest 返回点击位置命中的可见要素 最上层在前
func (s *Synchronizer) HitTest(p orb.Point) []*workspace.Feature {
	return s.index.Search(p, HitTolerance)
}

// applyLayer 返回是否发生结构性变化
func (s *Synchronizer) applyLayer(layer *workspace.Layer, class string, feats []*workspace.Feature) bool {
	sourceID := LayerPrefix + layer.BSM
	entry := s.managed[layer.BSM]

	if entry == nil {
		s.do(s.surface.UpsertSource(sourceID, featureCollection(feats)))
		for _, spec := range paintSpecs(layer, class) {
			s.do(s.surface.UpsertLayer(spec))
		}
		entry = &managedEntry{renderClass: class, style: layer.Style, visible: true, features: feats}
		s.managed[layer.BSM] = entry
		s.applyVisibility(layer, class, entry)
		return true
	}

	if entry.renderClass != class {
		// 渲染类型变化需重建图元 数据源保留替换
		for _, id := range paintIDs(layer.BSM, entry.renderClass) {
			s.do(s.surface.RemoveLayer(id))
		}
		s.do(s.surface.UpsertSource(sourceID, featureCollection(feats)))
		for _, spec := range paintSpecs(layer, class) {
			s.do(s.surface.UpsertLayer(spec))
		}
		entry.renderClass = class
		entry.style = layer.Style
		entry.features = feats
		entry.visible = true
		s.applyVisibility(layer, class, entry)
		return true
	}

	structural := false
	if !sameFeatures(entry.features, feats) {
		s.do(s.surface.UpsertSource(sourceID, featureCollection(feats)))
		entry.features = feats
		structural = true
	}

	if entry.style != layer.Style {
		// 样式变化只改绘制属性 不重建图元
		ids := paintIDs(layer.BSM, class)
		paints := paintProps(layer.Style, class)
		for i, id := range ids {
			s.do(s.surface.SetPaint(id, paints[i]))
		}
		entry.style = layer.Style
	}

	s.applyVisibility(layer, class, entry)
	return structural
}

func (s *Synchronizer) applyVisibility(layer *workspace.Layer, class string, entry *managedEntry) {
	if entry.visible == layer.IsVisible {
		return
	}
	for _, id := range paintIDs(layer.BSM, class) {
		s.do(s.surface.SetVisibility(id, layer.IsVisible))
	}
	entry.visible = layer.IsVisible
}

func (s *Synchronizer) removeLayerPrimitives(bsm, class string) {
	for _, id := range paintIDs(bsm, class) {
		s.do(s.surface.RemoveLayer(id))
	}
	s.do(s.surface.RemoveSource(LayerPrefix + bsm))
}

func (s *Synchronizer) syncHighlight() {
	var feats []*workspace.Feature
	for _, bsm := range s.store.Selection.FeatureBSMs {
		if f, _ := s.store.FindFeature(bsm); f != nil {
			feats = append(feats, f)
		}
	}

	if len(feats) == 0 {
		for class := range s.highlight {
			s.do(s.surface.RemoveLayer(highlightLayerID(class)))
		}
		s.highlight = make(map[string]bool)
		if s.highlightSrc {
			s.do(s.surface.RemoveSource(HighlightID))
			s.highlightSrc = false
		}
		s.lastHighlight = nil
		return
	}

	if !sameFeatures(s.lastHighlight, feats) {
		s.do(s.surface.UpsertSource(HighlightID, featureCollection(feats)))
		s.highlightSrc = true
		s.lastHighlight = feats
	}

	classes := make(map[string]bool)
	for _, f := range feats {
		if c := workspace.GeomClass(f.Geometry); c != "" {
			classes[c] = true
		}
	}
	for _, class := range []string{"polygon", "line", "point"} {
		switch {
		case classes[class] && !s.highlight[class]:
			s.do(s.surface.UpsertLayer(highlightSpec(class)))
			s.highlight[class] = true
		case !classes[class] && s.highlight[class]:
			s.do(s.surface.RemoveLayer(highlightLayerID(class)))
			delete(s.highlight, class)
		}
	}
}

func (s *Synchronizer) syncOverlay() {
	ov := s.store.Overlay
	if ov == nil {
		if s.lastOverlay != nil {
			s.do(s.surface.RemoveImageOverlay(OverlayID))
			s.lastOverlay = nil
		}
		return
	}
	if s.lastOverlay != nil && *s.lastOverlay == *ov {
		return
	}
	var corners [4][2]float64
	for i, c := range ov.Bounds {
		corners[i] = [2]float64{c.Lon, c.Lat}
	}
	s.do(s.surface.UpsertImageOverlay(OverlayID, ov.URL, corners, ov.Opacity, ov.IsVisible))
	cp := *ov
	s.lastOverlay = &cp
}

// applyStacking 自底向上依次置顶 每轮都重放一遍保证顺序确定
func (s *Synchronizer) applyStacking(targets []target) {
	var order []string
	if s.lastOverlay != nil {
		order = append(order, OverlayID)
	}
	for _, t := range targets {
		order = append(order, paintIDs(t.layer.BSM, t.class)...)
	}
	for _, class := range []string{"polygon", "line", "point"} {
		if s.highlight[class] {
			order = append(order, highlightLayerID(class))
		}
	}
	for _, id := range order {
		s.do(s.surface.MoveLayer(id, ""))
	}
}

// fitBounds 优先活动图层 否则全部可见要素
func (s *Synchronizer) fitBounds(targets []target) {
	var feats []*workspace.Feature
	if active := s.store.ActiveLayer(); active != nil {
		feats = active.VisibleFeatures()
	}
	if len(feats) == 0 {
		for _, t := range targets {
			feats = append(feats, t.feats...)
		}
	}
	if len(feats) == 0 {
		return
	}
	b := feats[0].Geometry.Bound()
	for _, f := range feats[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	s.do(s.surface.FitBounds(b))
}

// do 渲染指令失败只记录日志 不中断本轮同步
func (s *Synchronizer) do(err error) {
	if err != nil {
		log.Printf("渲染指令执行失败: %v", err)
	}
}

func sortedLayers(layers []*workspace.Layer) []*workspace.Layer {
	out := make([]*workspace.Layer, len(layers))
	copy(out, layers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

func sameFeatures(a, b []*workspace.Feature) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func featureCollection(feats []*workspace.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range feats {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.BSM
		props := geojson.Properties{"BSM": f.BSM}
		for k, v := range f.Properties {
			props[k] = v
		}
		gf.Properties = props
		fc.Append(gf)
	}
	return fc
}

func paintIDs(bsm, class string) []string {
	id := LayerPrefix + bsm
	if class == "polygon" {
		return []string{id, id + OutlineSuff}
	}
	return []string{id}
}

func paintProps(style workspace.Style, class string) []map[string]interface{} {
	switch class {
	case "point":
		return []map[string]interface{}{{
			"circle-color":   style.Color,
			"circle-opacity": style.Opacity,
			"circle-radius":  style.Size,
		}}
	case "line":
		return []map[string]interface{}{{
			"line-color":   style.Color,
			"line-opacity": style.Opacity,
			"line-width":   style.Size,
		}}
	default:
		return []map[string]interface{}{
			{
				"fill-color":   style.Color,
				"fill-opacity": style.Opacity,
			},
			{
				"line-color":   DarkenColor(style.Color, outlineDarkenRatio),
				"line-opacity": style.Opacity,
				"line-width":   outlineWidth(style.Size),
			},
		}
	}
}

func outlineWidth(size float64) float64 {
	if size <= 0 {
		return 1
	}
	return size
}

func paintSpecs(layer *workspace.Layer, class string) []LayerSpec {
	sourceID := LayerPrefix + layer.BSM
	ids := paintIDs(layer.BSM, class)
	paints := paintProps(layer.Style, class)
	types := paintTypes(class)
	specs := make([]LayerSpec, len(ids))
	for i := range ids {
		specs[i] = LayerSpec{ID: ids[i], Type: types[i], SourceID: sourceID, Paint: paints[i]}
	}
	return specs
}

func paintTypes(class string) []string {
	switch class {
	case "point":
		return []string{"circle"}
	case "line":
		return []string{"line"}
	default:
		return []string{"fill", "line"}
	}
}

func highlightLayerID(class string) string {
	return HighlightID + "-" + class
}

func highlightSpec(class string) LayerSpec {
	switch class {
	case "point":
		return LayerSpec{
			ID:       highlightLayerID(class),
			Type:     "circle",
			SourceID: HighlightID,
			Paint: map[string]interface{}{
				"circle-color":   highlightColor,
				"circle-opacity": highlightOpacity,
				"circle-radius":  highlightRadius,
			},
		}
	case "line":
		return LayerSpec{
			ID:       highlightLayerID(class),
			Type:     "line",
			SourceID: HighlightID,
			Paint: map[string]interface{}{
				"line-color":   highlightColor,
				"line-opacity": highlightOpacity,
				"line-width":   highlightWidth,
			},
		}
	default:
		return LayerSpec{
			ID:       highlightLayerID(class),
			Type:     "fill",
			SourceID: HighlightID,
			Paint: map[string]interface{}{
				"fill-color":   highlightColor,
				"fill-opacity": highlightOpacity,
			},
		}
	}
}
