package views

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/rendersync"
	"github.com/GrainArc/TraceMap/workflows"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 工作区会话

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 生产环境需要严格检查
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WorkspaceSession 一个打开工程的交互会话
// 会话goroutine独占工作流 读取与异步结果经mailbox串行进入
type WorkspaceSession struct {
	conn       *websocket.Conn
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	mailbox    chan func()
	controller *workflows.Controller
}

type wsInbound struct {
	Type       string                  `json:"type"`
	LngLat     []float64               `json:"lngLat"`
	Multi      bool                    `json:"multi"`
	TempID     string                  `json:"tempId"`
	Geometry   *geojson.Geometry       `json:"geometry"`
	LayerID    string                  `json:"layerId"`
	Name       string                  `json:"name"`
	Properties geojson.Properties      `json:"properties"`
	Rows       []workflows.PropertyRow `json:"rows"`
	BSM        string                  `json:"bsm"`
	URL        string                  `json:"url"`
	Index      int                     `json:"index"`
	Sequential bool                    `json:"sequential"`
	Px         float64                 `json:"px"`
	Py         float64                 `json:"py"`
	FileName   string                  `json:"fileName"`
	Header     []string                `json:"header"`
	CsvRows    [][]string              `json:"csvRows"`
	LayerName  string                  `json:"layerName"`
	ProjectID  string                  `json:"projectId"`
}

// OpenWorkspace 校验工程后升级到WebSocket 本goroutine转为会话事件循环
func (uc *UserController) OpenWorkspace(c *gin.Context) {
	projectBSM := c.Query("ProjectID")
	if projectBSM == "" {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "ProjectID不能为空"})
		return
	}
	var project models.Project
	if err := uc.DB.Where("bsm = ?", projectBSM).First(&project).Error; err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "工程不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &WorkspaceSession{
		conn:    conn,
		ctx:     ctx,
		cancel:  cancel,
		mailbox: make(chan func(), 64),
	}
	session.controller = workflows.NewController(
		projectBSM,
		&wsSurface{session: session},
		&wsNotifier{session: session},
		uc.boundary,
		session.post,
	)

	if err := session.send(gin.H{"op": "init", "projectId": projectBSM, "name": project.Name}); err != nil {
		log.Printf("初始化消息发送失败: %v", err)
		conn.Close()
		cancel()
		return
	}

	go session.readLoop()
	go session.pingLoop()
	session.post(func() { session.controller.RefreshLayers() })
	session.run()
}

// run 会话事件循环 每条事件处理完后对账一次
func (s *WorkspaceSession) run() {
	defer func() {
		s.cancel()
		s.controller.Close()
		s.conn.Close()
		log.Println("工作区会话结束")
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.mailbox:
			fn()
			s.controller.Flush()
		}
	}
}

// post 从任意goroutine投递闭包到会话 会话结束后投递被丢弃
func (s *WorkspaceSession) post(fn func()) {
	select {
	case s.mailbox <- fn:
	case <-s.ctx.Done():
	}
}

func (s *WorkspaceSession) readLoop() {
	defer s.cancel()
	for {
		var msg wsInbound
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket读取失败: %v", err)
			}
			return
		}
		m := msg
		s.post(func() { s.dispatch(m) })
	}
}

func (s *WorkspaceSession) pingLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				log.Printf("心跳发送失败: %v", err)
				s.cancel()
				return
			}
		}
	}
}

func (s *WorkspaceSession) dispatch(msg wsInbound) {
	ctrl := s.controller
	switch msg.Type {
	case "ready":
		ctrl.OnReady()
	case "refresh":
		ctrl.RefreshLayers()
	case "switchProject":
		if msg.ProjectID != "" {
			ctrl.SwitchProject(msg.ProjectID)
		}
	case "mapClick":
		if len(msg.LngLat) == 2 {
			ctrl.OnMapClick(msg.LngLat[0], msg.LngLat[1], msg.Multi)
		}
	case "drawBegin":
		ctrl.Draw.Begin()
	case "drawCreate":
		if msg.Geometry != nil {
			ctrl.Draw.HandleDrawCreate(msg.TempID, msg.Geometry.Geometry())
		}
	case "sharedKeys":
		keys := ctrl.Draw.SharedKeys(msg.LayerID)
		if keys == nil {
			keys = []string{}
		}
		if err := s.send(gin.H{"op": "sharedKeys", "layerId": msg.LayerID, "keys": keys}); err != nil {
			log.Printf("共有键发送失败: %v", err)
		}
	case "assignExisting":
		ctrl.Draw.ConfirmExisting(msg.LayerID, msg.Properties)
	case "assignNew":
		ctrl.Draw.ConfirmNew(msg.Name, msg.Rows)
	case "drawCancel":
		ctrl.Draw.Cancel()
	case "gcpLoadImage":
		ctrl.Gcp.LoadImage(msg.BSM, msg.URL)
	case "gcpArmImage":
		ctrl.Gcp.StartImageCapture(msg.Index, msg.Sequential)
	case "imageClick":
		ctrl.OnImageClick(msg.Px, msg.Py)
	case "gcpArmMap":
		ctrl.Gcp.ArmMapCapture(msg.Index)
	case "gcpSolve":
		ctrl.Gcp.Solve()
	case "gcpAccept":
		ctrl.Gcp.Accept()
	case "gcpCancel":
		ctrl.Gcp.Cancel()
	case "csvLoad":
		rows := make([]*workspace.CSVRow, 0, len(msg.CsvRows))
		for _, cells := range msg.CsvRows {
			rows = append(rows, &workspace.CSVRow{Cells: cells})
		}
		ctrl.Csv.LoadPreview(msg.FileName, msg.Header, rows)
	case "csvArmRow":
		ctrl.Csv.ArmRow(msg.Index)
	case "csvSave":
		ctrl.Csv.Save(msg.LayerName)
	case "csvDiscard":
		ctrl.Csv.Discard()
	default:
		log.Printf("未知的消息类型: %s", msg.Type)
	}
}

func (s *WorkspaceSession) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// wsSurface 把渲染面指令转成下行消息
type wsSurface struct {
	session *WorkspaceSession
}

func (w *wsSurface) UpsertSource(id string, data *geojson.FeatureCollection) error {
	return w.session.send(gin.H{"op": "upsertSource", "id": id, "data": data})
}

func (w *wsSurface) UpsertLayer(spec rendersync.LayerSpec) error {
	return w.session.send(gin.H{"op": "upsertLayer", "layer": spec})
}

func (w *wsSurface) SetPaint(layerID string, paint map[string]interface{}) error {
	return w.session.send(gin.H{"op": "setPaint", "id": layerID, "paint": paint})
}

func (w *wsSurface) SetVisibility(layerID string, visible bool) error {
	return w.session.send(gin.H{"op": "setVisibility", "id": layerID, "visible": visible})
}

func (w *wsSurface) MoveLayer(layerID string, beforeID string) error {
	return w.session.send(gin.H{"op": "moveLayer", "id": layerID, "before": beforeID})
}

func (w *wsSurface) RemoveLayer(layerID string) error {
	return w.session.send(gin.H{"op": "removeLayer", "id": layerID})
}

func (w *wsSurface) RemoveSource(id string) error {
	return w.session.send(gin.H{"op": "removeSource", "id": id})
}

func (w *wsSurface) FitBounds(b orb.Bound) error {
	return w.session.send(gin.H{"op": "fitBounds", "bounds": [][2]float64{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
	}})
}

func (w *wsSurface) UpsertImageOverlay(id string, url string, corners [4][2]float64, opacity float64, visible bool) error {
	return w.session.send(gin.H{
		"op": "upsertImageOverlay", "id": id, "url": url,
		"corners": corners, "opacity": opacity, "visible": visible,
	})
}

func (w *wsSurface) RemoveImageOverlay(id string) error {
	return w.session.send(gin.H{"op": "removeImageOverlay", "id": id})
}

func (w *wsSurface) UpsertMarker(id string, class string, p orb.Point, label string) error {
	return w.session.send(gin.H{
		"op": "upsertMarker", "id": id, "class": class,
		"lngLat": [2]float64{p[0], p[1]}, "label": label,
	})
}

func (w *wsSurface) RemoveMarker(id string) error {
	return w.session.send(gin.H{"op": "removeMarker", "id": id})
}

func (w *wsSurface) RemoveSketch(tempID string) error {
	return w.session.send(gin.H{"op": "removeSketch", "tempId": tempID})
}

// wsNotifier 提示消息下行
type wsNotifier struct {
	session *WorkspaceSession
}

func (n *wsNotifier) Notify(level string, message string) {
	if err := n.session.send(gin.H{"op": "notify", "level": level, "message": message}); err != nil {
		log.Printf("提示消息发送失败: %v", err)
	}
}
