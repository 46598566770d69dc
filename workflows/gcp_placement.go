package workflows

import (
	"log"
	"math"
	"strconv"
	"time"

	"github.com/GrainArc/TraceMap/rendersync"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/paulmach/orb"
)

// 影像链接存活探测间隔 签名链接过期即强制取消会话
const livenessInterval = 30 * time.Second

// GcpPlacement 影像配准工作流
// 每个控制点先采像素坐标再采地理坐标 四点齐备才允许求解
type GcpPlacement struct {
	store    *workspace.Workspace
	surface  rendersync.Surface
	notifier Notifier
	boundary Boundary
	post     func(func())

	imageBSM string
	imageURL string
	solved   bool

	// 地图端待落点的控制点下标 -1表示未待命
	armedMap int
	// 影像端当前采集下标与顺序采集模式
	imageArmed int
	seqImage   bool

	solveInFlight bool
	// epoch隔离跨会话的异步结果
	epoch    int
	stopPoll chan struct{}
}

func NewGcpPlacement(store *workspace.Workspace, surface rendersync.Surface, notifier Notifier, boundary Boundary, post func(func())) *GcpPlacement {
	return &GcpPlacement{
		store:      store,
		surface:    surface,
		notifier:   notifier,
		boundary:   boundary,
		post:       post,
		armedMap:   -1,
		imageArmed: -1,
	}
}

func (g *GcpPlacement) SessionActive() bool {
	return g.imageBSM != ""
}

func (g *GcpPlacement) Solved() bool {
	return g.solved
}

// ReadyToSolve 四个控制点全部齐备
func (g *GcpPlacement) ReadyToSolve() bool {
	return g.SessionActive() && g.store.GcpsComplete()
}

// LoadImage 载入待配准影像 控制点重置为空模板
func (g *GcpPlacement) LoadImage(bsm string, url string) {
	if g.SessionActive() {
		g.cancelSession(true)
	}
	g.epoch++
	g.imageBSM = bsm
	g.imageURL = url
	g.solved = false
	g.armedMap = -1
	g.imageArmed = -1
	g.seqImage = false
	g.store.ResetGcps()
	g.store.ClearOverlay()
	g.startLiveness()
}

// StartImageCapture 影像端采集 sequential为顺序补齐模式
func (g *GcpPlacement) StartImageCapture(index int, sequential bool) {
	if !g.SessionActive() {
		return
	}
	g.seqImage = sequential
	if sequential {
		g.imageArmed = g.nextImageUnset()
	} else {
		if index < 0 || index >= len(g.store.Gcps) {
			return
		}
		g.imageArmed = index
	}
}

// HandleImageClick 影像面板点击 记录取整后的像素坐标
func (g *GcpPlacement) HandleImageClick(px, py float64) {
	if !g.SessionActive() || g.imageArmed < 0 {
		return
	}
	x := math.Round(px)
	y := math.Round(py)
	g.store.SetGcp(g.imageArmed, workspace.GCPPatch{Px: &x, Py: &y})
	if g.seqImage {
		g.imageArmed = g.nextImageUnset()
	} else {
		g.imageArmed = -1
	}
}

func (g *GcpPlacement) nextImageUnset() int {
	for i, gcp := range g.store.Gcps {
		if !gcp.ImageSet() {
			return i
		}
	}
	return -1
}

// ArmMapCapture 地图端每次只待命一个控制点
func (g *GcpPlacement) ArmMapCapture(index int) {
	if !g.SessionActive() || index < 0 || index >= len(g.store.Gcps) {
		return
	}
	g.armedMap = index
}

// WantsClick 地图端有控制点待落点时 点击路由优先派发到这里
func (g *GcpPlacement) WantsClick() bool {
	return g.SessionActive() && g.armedMap >= 0
}

// HandleMapClick 写入地理坐标并解除待命
func (g *GcpPlacement) HandleMapClick(p orb.Point) {
	idx := g.armedMap
	if idx < 0 {
		return
	}
	lon := p[0]
	lat := p[1]
	g.store.SetGcp(idx, workspace.GCPPatch{Lon: &lon, Lat: &lat})
	g.armedMap = -1
	g.doSurface(g.surface.UpsertMarker(gcpMarkerID(idx), "gcp", p, strconv.Itoa(idx+1)))
}

// Solve 发起配准求解 成功产生影像叠加 失败停留可重试
func (g *GcpPlacement) Solve() {
	if !g.SessionActive() {
		g.notifier.Notify("error", "未载入配准影像")
		return
	}
	if g.solveInFlight {
		return
	}
	if !g.store.GcpsComplete() {
		g.notifier.Notify("error", "需要四个完整控制点")
		return
	}
	g.solveInFlight = true
	epoch := g.epoch
	var gcps [4]workspace.GCP
	for i, p := range g.store.Gcps {
		gcps[i] = *p
	}
	url := g.imageURL
	proj := g.store.ProjectBSM
	go func() {
		overlay, err := g.boundary.SolveGeoreference(url, gcps, proj)
		g.post(func() { g.onSolveResult(epoch, overlay, err) })
	}()
}

func (g *GcpPlacement) onSolveResult(epoch int, overlay *workspace.Overlay, err error) {
	if epoch != g.epoch {
		return
	}
	g.solveInFlight = false
	if err != nil {
		g.notifier.Notify("error", "配准求解失败: "+err.Error())
		return
	}
	g.store.SetOverlay(overlay)
	g.solved = true
	g.notifier.Notify("info", "配准完成")
}

// Accept 采纳配准结果 叠加保留 会话关闭
func (g *GcpPlacement) Accept() {
	if !g.solved {
		g.notifier.Notify("error", "尚未完成配准求解")
		return
	}
	g.epoch++
	g.stopLiveness()
	g.deleteRemote(g.imageBSM)
	g.clearMarkers()
	g.imageBSM = ""
	g.imageURL = ""
	g.solved = false
	g.solveInFlight = false
	g.armedMap = -1
	g.imageArmed = -1
	g.seqImage = false
	g.store.ResetGcps()
}

// Cancel 任意状态可取消 远端临时影像一并清理
func (g *GcpPlacement) Cancel() {
	if !g.SessionActive() && g.store.Overlay == nil {
		return
	}
	g.cancelSession(true)
}

func (g *GcpPlacement) cancelSession(deleteRemote bool) {
	g.epoch++
	g.stopLiveness()
	if deleteRemote && g.imageBSM != "" {
		g.deleteRemote(g.imageBSM)
	}
	g.clearMarkers()
	g.imageBSM = ""
	g.imageURL = ""
	g.solved = false
	g.solveInFlight = false
	g.armedMap = -1
	g.imageArmed = -1
	g.seqImage = false
	g.store.ResetGcps()
	g.store.ClearOverlay()
}

// Shutdown 会话关闭时只停探测 不动远端资源
func (g *GcpPlacement) Shutdown() {
	g.stopLiveness()
}

func (g *GcpPlacement) deleteRemote(bsm string) {
	if bsm == "" {
		return
	}
	go func() {
		if err := g.boundary.DeleteImage(bsm); err != nil {
			log.Printf("删除临时影像失败: %v", err)
		}
	}()
}

func (g *GcpPlacement) startLiveness() {
	g.stopLiveness()
	stop := make(chan struct{})
	g.stopPoll = stop
	url := g.imageURL
	go func() {
		ticker := time.NewTicker(livenessInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if g.boundary.CheckImage(url) {
					continue
				}
				g.post(func() { g.onImageExpired(url) })
				return
			}
		}
	}()
}

func (g *GcpPlacement) stopLiveness() {
	if g.stopPoll != nil {
		close(g.stopPoll)
		g.stopPoll = nil
	}
}

// onImageExpired 签名链接失效 强制取消且不可重试
func (g *GcpPlacement) onImageExpired(url string) {
	if url != g.imageURL {
		return
	}
	g.cancelSession(true)
	g.notifier.Notify("error", "配准影像链接已过期，会话已取消")
}

func (g *GcpPlacement) clearMarkers() {
	for i := range g.store.Gcps {
		g.doSurface(g.surface.RemoveMarker(gcpMarkerID(i)))
	}
}

func (g *GcpPlacement) doSurface(err error) {
	if err != nil {
		log.Printf("标记指令执行失败: %v", err)
	}
}

func gcpMarkerID(index int) string {
	return "gcp-" + strconv.Itoa(index+1)
}
