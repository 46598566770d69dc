package workflows

import (
	"github.com/GrainArc/TraceMap/rendersync"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/paulmach/orb"
)

// Controller 一个打开工程的工作流总装
// 所有方法都必须在会话goroutine内调用 异步结果经post回到会话
type Controller struct {
	Store  *workspace.Workspace
	Sync   *rendersync.Synchronizer
	Router *Router
	Draw   *DrawAssign
	Gcp    *GcpPlacement
	Csv    *CsvAttach
	Select *FeatureSelect

	boundary Boundary
	notifier Notifier
	post     func(func())

	dirty           bool
	refreshInFlight bool
}

func NewController(projectBSM string, surface rendersync.Surface, notifier Notifier, boundary Boundary, post func(func())) *Controller {
	store := workspace.New(projectBSM)
	c := &Controller{
		Store:    store,
		Sync:     rendersync.NewSynchronizer(surface, store),
		boundary: boundary,
		notifier: notifier,
		post:     post,
	}
	store.OnChange(func() { c.dirty = true })
	c.Select = NewFeatureSelect(store, c.Sync)
	c.Gcp = NewGcpPlacement(store, surface, notifier, boundary, post)
	c.Csv = NewCsvAttach(store, surface, notifier, boundary, post, c.afterCsvSaved)
	c.Draw = NewDrawAssign(store, surface, notifier, boundary, post, c.RefreshLayers)
	c.Router = NewRouter(c.Gcp, c.Csv, c.Select)
	return c
}

// Flush 每处理完一条事件对账一次 把累计的状态变化同步到渲染面
func (c *Controller) Flush() {
	if c.dirty {
		c.dirty = false
		c.Sync.Reconcile()
	}
}

func (c *Controller) OnReady() {
	c.Sync.Ready()
}

func (c *Controller) OnMapClick(lon, lat float64, multi bool) {
	c.Router.HandleClick(Click{Point: orb.Point{lon, lat}, Multi: multi})
}

func (c *Controller) OnImageClick(px, py float64) {
	c.Gcp.HandleImageClick(px, py)
}

// RefreshLayers 异步从库中拉取图层 在飞期间的重复触发被忽略
func (c *Controller) RefreshLayers() {
	if c.refreshInFlight {
		return
	}
	c.refreshInFlight = true
	proj := c.Store.ProjectBSM
	go func() {
		layers, err := c.boundary.LoadLayers(proj)
		c.post(func() {
			c.refreshInFlight = false
			if err != nil {
				c.notifier.Notify("error", "图层加载失败: "+err.Error())
				return
			}
			c.Store.SetLayers(layers)
		})
	}()
}

// SwitchProject 工程切换等同全局取消
func (c *Controller) SwitchProject(projectBSM string) {
	c.Gcp.cancelSession(true)
	c.Csv.Discard()
	c.Draw.Cancel()
	c.Store.ProjectBSM = projectBSM
	c.Store.ResetAll()
	c.RefreshLayers()
}

func (c *Controller) afterCsvSaved() {
	c.Gcp.Cancel()
	c.RefreshLayers()
}

// Close 会话结束 停掉探测任务 远端资源交由TTL回收
func (c *Controller) Close() {
	c.Gcp.Shutdown()
}
