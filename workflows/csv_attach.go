package workflows

import (
	"fmt"
	"log"
	"strconv"

	"github.com/GrainArc/TraceMap/Transformer"
	"github.com/GrainArc/TraceMap/rendersync"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/paulmach/orb"
)

// CsvAttach 表格落点工作流
// Reviewing与Setting往复 全部行落点后才可保存为新图层
type CsvAttach struct {
	store    *workspace.Workspace
	surface  rendersync.Surface
	notifier Notifier
	boundary Boundary
	post     func(func())
	// 保存成功后的收尾 由控制器注入 清理配准状态并刷新图层
	afterSave func()

	fileName string
	// 待落点行下标 -1表示Reviewing
	armed        int
	saveInFlight bool
	placed       map[int]bool
}

func NewCsvAttach(store *workspace.Workspace, surface rendersync.Surface, notifier Notifier, boundary Boundary, post func(func()), afterSave func()) *CsvAttach {
	return &CsvAttach{
		store:     store,
		surface:   surface,
		notifier:  notifier,
		boundary:  boundary,
		post:      post,
		afterSave: afterSave,
		armed:     -1,
		placed:    make(map[int]bool),
	}
}

func (c *CsvAttach) Active() bool {
	return len(c.store.CsvRows) > 0
}

// LoadPreview 载入预览行 旧的落点标记一并清除
func (c *CsvAttach) LoadPreview(fileName string, header []string, rows []*workspace.CSVRow) {
	c.clearMarkers()
	c.fileName = fileName
	c.armed = -1
	c.saveInFlight = false
	c.store.SetCsv(header, rows)
}

// ArmRow 待命一行等待地图落点 重复调用移动待命行
func (c *CsvAttach) ArmRow(index int) {
	if index < 0 || index >= len(c.store.CsvRows) {
		return
	}
	c.armed = index
}

// WantsClick 有行待命时点击路由派发到这里
func (c *CsvAttach) WantsClick() bool {
	return c.Active() && c.armed >= 0
}

// HandleMapClick 写入坐标并回到Reviewing
func (c *CsvAttach) HandleMapClick(p orb.Point) {
	idx := c.armed
	if idx < 0 {
		return
	}
	coord := &workspace.Coord{Lon: p[0], Lat: p[1]}
	c.store.PatchCsvRow(idx, workspace.CSVRowPatch{Coord: coord})
	c.armed = -1
	c.doSurface(c.surface.UpsertMarker(csvMarkerID(idx), "csv", p, strconv.Itoa(idx+1)))
	c.placed[idx] = true
}

func (c *CsvAttach) Saveable() bool {
	return c.store.CsvSaveable()
}

// Save 序列化全部行并追加合成经纬度列 作为新图层整批入库
func (c *CsvAttach) Save(layerName string) {
	if c.saveInFlight {
		return
	}
	if !c.Saveable() {
		c.notifier.Notify("error", "存在未落点的行，无法保存")
		return
	}
	if layerName == "" {
		layerName = c.fileName
	}
	if layerName == "" {
		c.notifier.Notify("error", "图层名称不能为空")
		return
	}

	header := c.store.CsvHeader
	latCol, lonCol := Transformer.SynthCoordColumns(header)
	outHeader := append(append([]string{}, header...), latCol, lonCol)
	records := make([][]string, 0, len(c.store.CsvRows))
	for _, row := range c.store.CsvRows {
		rec := append(append([]string{}, row.Cells...),
			strconv.FormatFloat(row.Coord.Lat, 'f', -1, 64),
			strconv.FormatFloat(row.Coord.Lon, 'f', -1, 64))
		records = append(records, rec)
	}
	csvText := Transformer.WriteCsvText(outHeader, records)

	args := CsvCommitArgs{
		ProjectBSM: c.store.ProjectBSM,
		LayerName:  layerName,
		CsvText:    csvText,
		LatCol:     latCol,
		LonCol:     lonCol,
		Included:   append([]string{}, header...),
	}
	c.saveInFlight = true
	go func() {
		stats, err := c.boundary.CommitCsv(args)
		c.post(func() { c.onSaved(stats, err) })
	}()
}

func (c *CsvAttach) onSaved(stats CsvCommitStats, err error) {
	c.saveInFlight = false
	if err != nil {
		c.notifier.Notify("error", "表格保存失败: "+err.Error())
		return
	}
	c.notifier.Notify("info", fmt.Sprintf("表格已保存 入库%d条 丢弃%d条", stats.Inserted, stats.Dropped))
	c.clearMarkers()
	c.armed = -1
	c.fileName = ""
	c.store.ClearCsv()
	if c.afterSave != nil {
		c.afterSave()
	}
}

// Discard 放弃全部预览行与落点
func (c *CsvAttach) Discard() {
	if !c.Active() {
		return
	}
	c.clearMarkers()
	c.armed = -1
	c.fileName = ""
	c.store.ClearCsv()
}

func (c *CsvAttach) clearMarkers() {
	for idx := range c.placed {
		c.doSurface(c.surface.RemoveMarker(csvMarkerID(idx)))
	}
	c.placed = make(map[int]bool)
}

func (c *CsvAttach) doSurface(err error) {
	if err != nil {
		log.Printf("标记指令执行失败: %v", err)
	}
}

func csvMarkerID(index int) string {
	return "csv-" + strconv.Itoa(index)
}
