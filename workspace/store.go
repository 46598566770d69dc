package workspace

import (
	"sort"
	"strings"
)

// Workspace 打开工程的内存状态 由会话goroutine独占访问
type Workspace struct {
	ProjectBSM string
	Layers     []*Layer
	Selection  Selection
	Gcps       [4]*GCP
	CsvHeader  []string
	CsvRows    []*CSVRow
	Sketches   []*Sketch
	Overlay    *Overlay

	version  uint64
	onChange func()
}

func New(projectBSM string) *Workspace {
	w := &Workspace{ProjectBSM: projectBSM}
	w.initGcps()
	return w
}

func (w *Workspace) initGcps() {
	for i := range w.Gcps {
		w.Gcps[i] = &GCP{ID: i + 1}
	}
}

// OnChange 注册变更监听 每次状态变更后触发
func (w *Workspace) OnChange(fn func()) {
	w.onChange = fn
}

func (w *Workspace) Version() uint64 {
	return w.version
}

func (w *Workspace) bump() {
	w.version++
	if w.onChange != nil {
		w.onChange()
	}
}

// SetLayers 整体替换图层集合 刷新入库结果后调用
func (w *Workspace) SetLayers(layers []*Layer) {
	w.Layers = layers
	// 选中对象可能已不存在 清理失效引用
	if w.Selection.LayerBSM != "" && w.FindLayer(w.Selection.LayerBSM) == nil {
		w.Selection = Selection{}
	} else if len(w.Selection.FeatureBSMs) > 0 {
		var kept []string
		for _, bsm := range w.Selection.FeatureBSMs {
			if f, _ := w.FindFeature(bsm); f != nil {
				kept = append(kept, bsm)
			}
		}
		w.Selection.FeatureBSMs = kept
	}
	w.bump()
}

// SetGcp 合并补丁到指定控制点 下标越界静默忽略
func (w *Workspace) SetGcp(index int, patch GCPPatch) {
	if index < 0 || index >= len(w.Gcps) {
		return
	}
	g := w.Gcps[index]
	if patch.Px != nil {
		g.Px = patch.Px
	}
	if patch.Py != nil {
		g.Py = patch.Py
	}
	if patch.Lon != nil {
		g.Lon = patch.Lon
	}
	if patch.Lat != nil {
		g.Lat = patch.Lat
	}
	w.bump()
}

// ResetGcps 全部重置为空模板 载入影像和取消配准时调用
func (w *Workspace) ResetGcps() {
	w.initGcps()
	w.bump()
}

func (w *Workspace) GcpsComplete() bool {
	for _, g := range w.Gcps {
		if !g.Complete() {
			return false
		}
	}
	return true
}

// SetSelection 切换活动图层时要素选择由调用方显式携带
func (w *Workspace) SetSelection(layerBSM string, featureBSMs []string) {
	w.Selection = Selection{LayerBSM: layerBSM, FeatureBSMs: featureBSMs}
	w.bump()
}

func (w *Workspace) SetCsv(header []string, rows []*CSVRow) {
	w.CsvHeader = header
	w.CsvRows = rows
	w.bump()
}

// PatchCsvRow 下标越界静默忽略
func (w *Workspace) PatchCsvRow(index int, patch CSVRowPatch) {
	if index < 0 || index >= len(w.CsvRows) {
		return
	}
	if patch.Coord != nil {
		w.CsvRows[index].Coord = patch.Coord
	}
	w.bump()
}

func (w *Workspace) ClearCsv() {
	w.CsvHeader = nil
	w.CsvRows = nil
	w.bump()
}

// CsvSaveable 所有行都有坐标才允许保存
func (w *Workspace) CsvSaveable() bool {
	if len(w.CsvRows) == 0 {
		return false
	}
	for _, r := range w.CsvRows {
		if r.Coord == nil {
			return false
		}
	}
	return true
}

func (w *Workspace) AddSketch(s *Sketch) {
	w.Sketches = append(w.Sketches, s)
	w.bump()
}

func (w *Workspace) RemoveSketch(tempID string) {
	var kept []*Sketch
	for _, s := range w.Sketches {
		if s.TempID != tempID {
			kept = append(kept, s)
		}
	}
	w.Sketches = kept
	w.bump()
}

func (w *Workspace) FindSketch(tempID string) *Sketch {
	for _, s := range w.Sketches {
		if s.TempID == tempID {
			return s
		}
	}
	return nil
}

func (w *Workspace) SetOverlay(o *Overlay) {
	w.Overlay = o
	w.bump()
}

func (w *Workspace) ClearOverlay() {
	if w.Overlay == nil {
		return
	}
	w.Overlay = nil
	w.bump()
}

// ResetAll 工程切换时清空全部工作区状态
func (w *Workspace) ResetAll() {
	w.Layers = nil
	w.Selection = Selection{}
	w.initGcps()
	w.CsvHeader = nil
	w.CsvRows = nil
	w.Sketches = nil
	w.Overlay = nil
	w.bump()
}

func (w *Workspace) FindLayer(bsm string) *Layer {
	for _, l := range w.Layers {
		if l.BSM == bsm {
			return l
		}
	}
	return nil
}

func (w *Workspace) FindFeature(bsm string) (*Feature, *Layer) {
	for _, l := range w.Layers {
		for _, f := range l.Features {
			if f.BSM == bsm {
				return f, l
			}
		}
	}
	return nil, nil
}

func (w *Workspace) ActiveLayer() *Layer {
	if w.Selection.LayerBSM == "" {
		return nil
	}
	return w.FindLayer(w.Selection.LayerBSM)
}

// SharedPropertyKeys 图层内所有要素共有的属性键 内部标识键排除
func (w *Workspace) SharedPropertyKeys(layerBSM string) []string {
	layer := w.FindLayer(layerBSM)
	if layer == nil || len(layer.Features) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, f := range layer.Features {
		for k := range f.Properties {
			if k == "BSM" || strings.HasPrefix(k, "_") {
				continue
			}
			counts[k]++
		}
	}
	var keys []string
	for k, n := range counts {
		if n == len(layer.Features) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
