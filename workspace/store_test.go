package workspace

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 {
	return &v
}

func TestNewWorkspaceGcpTemplate(t *testing.T) {
	w := New("p1")
	require.Len(t, w.Gcps, 4)
	for i, g := range w.Gcps {
		assert.Equal(t, i+1, g.ID)
		assert.False(t, g.ImageSet())
		assert.False(t, g.MapSet())
		assert.False(t, g.Complete())
	}
}

func TestSetGcpMergesPatch(t *testing.T) {
	w := New("p1")
	w.SetGcp(0, GCPPatch{Px: f64(10), Py: f64(20)})
	assert.True(t, w.Gcps[0].ImageSet())
	assert.False(t, w.Gcps[0].Complete())

	w.SetGcp(0, GCPPatch{Lon: f64(105.1), Lat: f64(27.2)})
	assert.True(t, w.Gcps[0].Complete())
	assert.Equal(t, 10.0, *w.Gcps[0].Px)
	assert.Equal(t, 105.1, *w.Gcps[0].Lon)
}

func TestSetGcpOutOfRangeIgnored(t *testing.T) {
	w := New("p1")
	before := w.Version()
	w.SetGcp(-1, GCPPatch{Px: f64(1)})
	w.SetGcp(4, GCPPatch{Px: f64(1)})
	assert.Equal(t, before, w.Version())
}

func TestGcpsCompleteRequiresAllFour(t *testing.T) {
	w := New("p1")
	for i := 0; i < 3; i++ {
		w.SetGcp(i, GCPPatch{Px: f64(1), Py: f64(2), Lon: f64(3), Lat: f64(4)})
	}
	assert.False(t, w.GcpsComplete())
	w.SetGcp(3, GCPPatch{Px: f64(1), Py: f64(2), Lon: f64(3), Lat: f64(4)})
	assert.True(t, w.GcpsComplete())
}

func TestResetGcpsRestoresTemplate(t *testing.T) {
	w := New("p1")
	for i := 0; i < 4; i++ {
		w.SetGcp(i, GCPPatch{Px: f64(1), Py: f64(2), Lon: f64(3), Lat: f64(4)})
	}
	w.ResetGcps()
	require.Len(t, w.Gcps, 4)
	for _, g := range w.Gcps {
		assert.False(t, g.ImageSet())
		assert.False(t, g.MapSet())
	}
}

func TestCsvSaveable(t *testing.T) {
	w := New("p1")
	assert.False(t, w.CsvSaveable())

	rows := []*CSVRow{
		{Cells: []string{"甲", "1"}},
		{Cells: []string{"乙", "2"}},
	}
	w.SetCsv([]string{"名称", "编号"}, rows)
	assert.False(t, w.CsvSaveable())

	w.PatchCsvRow(0, CSVRowPatch{Coord: &Coord{Lon: 105, Lat: 27}})
	assert.False(t, w.CsvSaveable())
	w.PatchCsvRow(1, CSVRowPatch{Coord: &Coord{Lon: 106, Lat: 28}})
	assert.True(t, w.CsvSaveable())
}

func TestPatchCsvRowOutOfRangeIgnored(t *testing.T) {
	w := New("p1")
	w.SetCsv([]string{"a"}, []*CSVRow{{Cells: []string{"1"}}})
	before := w.Version()
	w.PatchCsvRow(5, CSVRowPatch{Coord: &Coord{Lon: 1, Lat: 1}})
	assert.Equal(t, before, w.Version())
}

func TestSetLayersPrunesDeadSelection(t *testing.T) {
	w := New("p1")
	layer := &Layer{BSM: "L1", IsVisible: true, Features: []*Feature{
		{BSM: "F1", LayerBSM: "L1", IsVisible: true, Geometry: orb.Point{1, 1}},
		{BSM: "F2", LayerBSM: "L1", IsVisible: true, Geometry: orb.Point{2, 2}},
	}}
	w.SetLayers([]*Layer{layer})
	w.SetSelection("L1", []string{"F1", "F2"})

	// F2消失后选择只剩F1
	smaller := &Layer{BSM: "L1", IsVisible: true, Features: []*Feature{
		{BSM: "F1", LayerBSM: "L1", IsVisible: true, Geometry: orb.Point{1, 1}},
	}}
	w.SetLayers([]*Layer{smaller})
	assert.Equal(t, []string{"F1"}, w.Selection.FeatureBSMs)

	// 图层整体消失后选择清空
	w.SetLayers(nil)
	assert.Equal(t, Selection{}, w.Selection)
}

func TestResetAllClearsEverything(t *testing.T) {
	w := New("p1")
	w.SetLayers([]*Layer{{BSM: "L1"}})
	w.SetSelection("L1", []string{"F1"})
	w.SetGcp(0, GCPPatch{Px: f64(1)})
	w.SetCsv([]string{"a"}, []*CSVRow{{Cells: []string{"1"}}})
	w.AddSketch(&Sketch{TempID: "t1", Geometry: orb.Point{0, 0}})
	w.SetOverlay(&Overlay{URL: "http://x"})

	w.ResetAll()
	assert.Empty(t, w.Layers)
	assert.Equal(t, Selection{}, w.Selection)
	assert.False(t, w.Gcps[0].ImageSet())
	assert.Empty(t, w.CsvRows)
	assert.Empty(t, w.Sketches)
	assert.Nil(t, w.Overlay)
}

func TestOnChangeFiresOnEveryMutation(t *testing.T) {
	w := New("p1")
	var fired int
	w.OnChange(func() { fired++ })
	w.SetLayers(nil)
	w.SetGcp(0, GCPPatch{Px: f64(1)})
	w.SetCsv(nil, nil)
	w.SetOverlay(nil)
	assert.Equal(t, 4, fired)
}

func TestSharedPropertyKeys(t *testing.T) {
	w := New("p1")
	layer := &Layer{BSM: "L1", Features: []*Feature{
		{BSM: "F1", Properties: geojson.Properties{"name": "a", "type": "x", "BSM": "F1", "_internal": 1}},
		{BSM: "F2", Properties: geojson.Properties{"name": "b", "type": "y", "extra": 1}},
		{BSM: "F3", Properties: geojson.Properties{"name": "c", "type": "z"}},
	}}
	w.SetLayers([]*Layer{layer})

	keys := w.SharedPropertyKeys("L1")
	assert.Equal(t, []string{"name", "type"}, keys)
	assert.Nil(t, w.SharedPropertyKeys("missing"))
}

func TestGeomClass(t *testing.T) {
	assert.Equal(t, "point", GeomClass(orb.Point{1, 2}))
	assert.Equal(t, "point", GeomClass(orb.MultiPoint{{1, 2}}))
	assert.Equal(t, "line", GeomClass(orb.LineString{{0, 0}, {1, 1}}))
	assert.Equal(t, "polygon", GeomClass(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	assert.Equal(t, "", GeomClass(nil))
}

func TestRenderClassFromVisibleFeatures(t *testing.T) {
	layer := &Layer{BSM: "L1", Features: []*Feature{
		{BSM: "F1", IsVisible: false, Geometry: orb.Point{1, 1}},
		{BSM: "F2", IsVisible: true, Geometry: orb.LineString{{0, 0}, {1, 1}}},
	}}
	assert.Equal(t, "line", layer.RenderClass())

	layer.Features[1].IsVisible = false
	assert.Equal(t, "", layer.RenderClass())
}
