package workflows

import (
	"sync"
	"testing"
	"time"

	"github.com/GrainArc/TraceMap/rendersync"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// fakeSurface 记录渲染指令
type fakeSurface struct {
	mu  sync.Mutex
	ops []fakeOp
}

type fakeOp struct {
	kind string
	id   string
}

func (f *fakeSurface) record(kind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fakeOp{kind: kind, id: id})
	return nil
}

func (f *fakeSurface) has(kind, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range f.ops {
		if op.kind == kind && op.id == id {
			return true
		}
	}
	return false
}

func (f *fakeSurface) opCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ops)
}

func (f *fakeSurface) UpsertSource(id string, data *geojson.FeatureCollection) error {
	return f.record("upsertSource", id)
}
func (f *fakeSurface) UpsertLayer(spec rendersync.LayerSpec) error {
	return f.record("upsertLayer", spec.ID)
}
func (f *fakeSurface) SetPaint(layerID string, paint map[string]interface{}) error {
	return f.record("setPaint", layerID)
}
func (f *fakeSurface) SetVisibility(layerID string, visible bool) error {
	return f.record("setVisibility", layerID)
}
func (f *fakeSurface) MoveLayer(layerID string, beforeID string) error {
	return f.record("moveLayer", layerID)
}
func (f *fakeSurface) RemoveLayer(layerID string) error {
	return f.record("removeLayer", layerID)
}
func (f *fakeSurface) RemoveSource(id string) error {
	return f.record("removeSource", id)
}
func (f *fakeSurface) FitBounds(b orb.Bound) error {
	return f.record("fitBounds", "")
}
func (f *fakeSurface) UpsertImageOverlay(id string, url string, corners [4][2]float64, opacity float64, visible bool) error {
	return f.record("upsertImageOverlay", id)
}
func (f *fakeSurface) RemoveImageOverlay(id string) error {
	return f.record("removeImageOverlay", id)
}
func (f *fakeSurface) UpsertMarker(id string, class string, p orb.Point, label string) error {
	return f.record("upsertMarker", id)
}
func (f *fakeSurface) RemoveMarker(id string) error {
	return f.record("removeMarker", id)
}
func (f *fakeSurface) RemoveSketch(tempID string) error {
	return f.record("removeSketch", tempID)
}

// fakeNotifier 记录提示
type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Notify(level string, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, level+": "+message)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func (f *fakeNotifier) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return ""
	}
	return f.msgs[len(f.msgs)-1]
}

// fakeBoundary 可编程的持久化与求解协作方
type fakeBoundary struct {
	mu sync.Mutex

	layers    []*workspace.Layer
	loadErr   error
	addErr    error
	createErr error
	commitErr error
	solveErr  error

	overlay     *workspace.Overlay
	commitStats CsvCommitStats

	loadCalls   int
	addCalls    int
	solveCalls  int
	commitCalls int
	createNames []string
	lastProps   geojson.Properties
	lastCommit  CsvCommitArgs
	lastGcps    [4]workspace.GCP
	deleted     []string
	checkOK     bool
}

func newFakeBoundary() *fakeBoundary {
	return &fakeBoundary{checkOK: true, commitStats: CsvCommitStats{LayerBSM: "new-layer", Inserted: 1}}
}

func (f *fakeBoundary) LoadLayers(projectBSM string) ([]*workspace.Layer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return f.layers, f.loadErr
}

func (f *fakeBoundary) AddFeature(projectBSM string, layerBSM string, geom orb.Geometry, props geojson.Properties) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.lastProps = props
	return f.addErr
}

func (f *fakeBoundary) CreateLayerWithFeatures(projectBSM string, name string, feats []NewFeature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.createNames = append(f.createNames, name)
	if len(feats) > 0 {
		f.lastProps = feats[0].Properties
	}
	return nil
}

func (f *fakeBoundary) CommitCsv(args CsvCommitArgs) (CsvCommitStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	f.lastCommit = args
	return f.commitStats, f.commitErr
}

func (f *fakeBoundary) SolveGeoreference(imageURL string, gcps [4]workspace.GCP, projectBSM string) (*workspace.Overlay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.solveCalls++
	f.lastGcps = gcps
	if f.solveErr != nil {
		return nil, f.solveErr
	}
	return f.overlay, nil
}

func (f *fakeBoundary) DeleteImage(imageBSM string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, imageBSM)
	return nil
}

func (f *fakeBoundary) CheckImage(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkOK
}

func (f *fakeBoundary) deletedImages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.deleted...)
}

func (f *fakeBoundary) solveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.solveCalls
}

func (f *fakeBoundary) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitCalls
}

func (f *fakeBoundary) committedArgs() CsvCommitArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCommit
}

// harness 工作流测试装配 mailbox模拟会话邮箱
type harness struct {
	store    *workspace.Workspace
	surface  *fakeSurface
	notifier *fakeNotifier
	boundary *fakeBoundary
	mailbox  chan func()
}

func newHarness() *harness {
	return &harness{
		store:    workspace.New("p1"),
		surface:  &fakeSurface{},
		notifier: &fakeNotifier{},
		boundary: newFakeBoundary(),
		mailbox:  make(chan func(), 16),
	}
}

func (h *harness) post(fn func()) {
	h.mailbox <- fn
}

// drain 等待一条异步结果并在测试goroutine上执行
func (h *harness) drain(t *testing.T) {
	t.Helper()
	select {
	case fn := <-h.mailbox:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("等待异步结果超时")
	}
}

func completeGcp(w *workspace.Workspace, index int, px, py, lon, lat float64) {
	w.SetGcp(index, workspace.GCPPatch{Px: &px, Py: &py, Lon: &lon, Lat: &lat})
}

func fourCornerOverlay() *workspace.Overlay {
	return &workspace.Overlay{
		URL: "http://solver/out.png",
		Bounds: [4]workspace.Coord{
			{Lon: 105.0, Lat: 27.1},
			{Lon: 105.1, Lat: 27.1},
			{Lon: 105.1, Lat: 27.0},
			{Lon: 105.0, Lat: 27.0},
		},
		Opacity:   0.8,
		IsVisible: true,
	}
}
