package workflows

import (
	"log"

	"github.com/GrainArc/TraceMap/rendersync"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type DrawState int

const (
	DrawIdle DrawState = iota
	DrawSketching
	DrawPending
)

// PropertyRow 新建图层属性录入行
type PropertyRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DrawAssign 绘制入库工作流
// Idle -> Sketching -> PendingAssignment -> 入库或放弃
type DrawAssign struct {
	store    *workspace.Workspace
	surface  rendersync.Surface
	notifier Notifier
	boundary Boundary
	post     func(func())
	refresh  func()

	state    DrawState
	sketchID string
	// 属性共有键按图层缓存 仅在一次待指派期间有效
	sharedKeys map[string][]string

	persistInFlight bool
}

func NewDrawAssign(store *workspace.Workspace, surface rendersync.Surface, notifier Notifier, boundary Boundary, post func(func()), refresh func()) *DrawAssign {
	return &DrawAssign{
		store:    store,
		surface:  surface,
		notifier: notifier,
		boundary: boundary,
		post:     post,
		refresh:  refresh,
	}
}

func (d *DrawAssign) State() DrawState {
	return d.state
}

// Begin 客户端开始绘制
func (d *DrawAssign) Begin() {
	if d.state == DrawIdle {
		d.state = DrawSketching
	}
}

// HandleDrawCreate 绘制完成 生成待入库草图并进入指派
func (d *DrawAssign) HandleDrawCreate(tempID string, geom orb.Geometry) {
	if workspace.GeomClass(geom) == "" {
		return
	}
	if d.state == DrawPending && d.sketchID != "" {
		// 上一笔未处理 丢弃旧草图
		d.dropSketch()
	}
	if tempID == "" {
		tempID = uuid.New().String()
	}
	d.store.AddSketch(&workspace.Sketch{TempID: tempID, Geometry: geom})
	d.sketchID = tempID
	d.sharedKeys = make(map[string][]string)
	d.state = DrawPending
}

// SharedKeys 目标图层全部要素共有的属性键 一次待指派期间缓存
func (d *DrawAssign) SharedKeys(layerBSM string) []string {
	if d.state != DrawPending {
		return nil
	}
	if keys, ok := d.sharedKeys[layerBSM]; ok {
		return keys
	}
	keys := d.store.SharedPropertyKeys(layerBSM)
	d.sharedKeys[layerBSM] = keys
	return keys
}

// ConfirmExisting 指派到已有图层 属性限定为共有键
func (d *DrawAssign) ConfirmExisting(layerBSM string, props geojson.Properties) {
	if d.state != DrawPending || d.persistInFlight {
		return
	}
	layer := d.store.FindLayer(layerBSM)
	if layer == nil {
		d.notifier.Notify("error", "目标图层不存在")
		return
	}
	sketch := d.store.FindSketch(d.sketchID)
	if sketch == nil {
		d.state = DrawIdle
		return
	}

	allowed := make(map[string]bool)
	for _, k := range d.SharedKeys(layerBSM) {
		allowed[k] = true
	}
	filtered := geojson.Properties{}
	for k, v := range props {
		if allowed[k] {
			filtered[k] = v
		}
	}

	d.persistInFlight = true
	proj := d.store.ProjectBSM
	geom := sketch.Geometry
	go func() {
		err := d.boundary.AddFeature(proj, layerBSM, geom, filtered)
		d.post(func() { d.onPersisted(err) })
	}()
}

// ConfirmNew 指派到新图层 空键行丢弃 空值保留
func (d *DrawAssign) ConfirmNew(name string, rows []PropertyRow) {
	if d.state != DrawPending || d.persistInFlight {
		return
	}
	if name == "" {
		d.notifier.Notify("error", "图层名称不能为空")
		return
	}
	sketch := d.store.FindSketch(d.sketchID)
	if sketch == nil {
		d.state = DrawIdle
		return
	}

	props := geojson.Properties{}
	for _, row := range rows {
		if row.Key == "" {
			continue
		}
		props[row.Key] = row.Value
	}

	d.persistInFlight = true
	proj := d.store.ProjectBSM
	feats := []NewFeature{{Geometry: sketch.Geometry, Properties: props}}
	go func() {
		err := d.boundary.CreateLayerWithFeatures(proj, name, feats)
		d.post(func() { d.onPersisted(err) })
	}()
}

// onPersisted 入库失败停留在待指派可重试 成功后清理草图并刷新图层
func (d *DrawAssign) onPersisted(err error) {
	d.persistInFlight = false
	if err != nil {
		d.notifier.Notify("error", "要素入库失败: "+err.Error())
		return
	}
	d.dropSketch()
	d.state = DrawIdle
	d.sharedKeys = nil
	d.refresh()
}

// Cancel 放弃草图 不入库
func (d *DrawAssign) Cancel() {
	if d.state == DrawIdle {
		return
	}
	if d.sketchID != "" {
		d.dropSketch()
	}
	d.state = DrawIdle
	d.sharedKeys = nil
}

func (d *DrawAssign) dropSketch() {
	if err := d.surface.RemoveSketch(d.sketchID); err != nil {
		log.Printf("删除草图指令失败: %v", err)
	}
	d.store.RemoveSketch(d.sketchID)
	d.sketchID = ""
}
