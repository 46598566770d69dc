package workflows

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrainArc/TraceMap/workspace"
)

func newCsvHarness() (*harness, *CsvAttach, *bool) {
	h := newHarness()
	saved := false
	c := NewCsvAttach(h.store, h.surface, h.notifier, h.boundary, h.post, func() { saved = true })
	return h, c, &saved
}

func csvRows(cells ...[]string) []*workspace.CSVRow {
	rows := make([]*workspace.CSVRow, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, &workspace.CSVRow{Cells: c})
	}
	return rows
}

func TestCsvLoadPreviewAndPlacement(t *testing.T) {
	h, c, _ := newCsvHarness()
	c.LoadPreview("points.csv", []string{"名称", "类型"}, csvRows(
		[]string{"井盖A", "排水"},
		[]string{"井盖B", "排水"},
	))
	assert.True(t, c.Active())
	assert.False(t, c.Saveable())
	assert.False(t, c.WantsClick())

	c.ArmRow(0)
	require.True(t, c.WantsClick())
	c.HandleMapClick(orb.Point{105.1, 27.2})

	assert.False(t, c.WantsClick())
	require.NotNil(t, h.store.CsvRows[0].Coord)
	assert.Equal(t, 105.1, h.store.CsvRows[0].Coord.Lon)
	assert.True(t, h.surface.has("upsertMarker", "csv-0"))
	assert.False(t, c.Saveable())

	// 重新落点覆盖原坐标
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{106, 28})
	assert.Equal(t, 106.0, h.store.CsvRows[0].Coord.Lon)
}

func TestCsvArmRowOutOfRangeIgnored(t *testing.T) {
	_, c, _ := newCsvHarness()
	c.LoadPreview("points.csv", []string{"名称"}, csvRows([]string{"a"}))
	c.ArmRow(5)
	assert.False(t, c.WantsClick())
	c.ArmRow(-1)
	assert.False(t, c.WantsClick())
}

func TestCsvSaveRejectedUntilAllPlaced(t *testing.T) {
	h, c, _ := newCsvHarness()
	c.LoadPreview("points.csv", []string{"名称"}, csvRows([]string{"a"}, []string{"b"}))
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{105, 27})

	c.Save("新图层")
	assert.Equal(t, 0, h.boundary.commitCount())
	assert.Contains(t, h.notifier.last(), "未落点")
	assert.True(t, c.Active())
}

func TestCsvSaveSynthesizesCoordColumns(t *testing.T) {
	h, c, saved := newCsvHarness()
	c.LoadPreview("points.csv", []string{"名称", "纬度"}, csvRows(
		[]string{"井盖A", "备注27"},
	))
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{105.5, 27.5})
	require.True(t, c.Saveable())

	c.Save("标注点")
	h.drain(t)

	args := h.boundary.committedArgs()
	assert.Equal(t, "标注点", args.LayerName)
	assert.Equal(t, "p1", args.ProjectBSM)
	// 原表头已有纬度列 合成列名需避让
	assert.Equal(t, "纬度_1", args.LatCol)
	assert.Equal(t, "经度", args.LonCol)
	assert.Equal(t, []string{"名称", "纬度"}, args.Included)
	assert.True(t, strings.HasPrefix(args.CsvText, "名称,纬度,纬度_1,经度\n"))
	assert.Contains(t, args.CsvText, "井盖A,备注27,27.5,105.5")

	assert.Contains(t, h.notifier.last(), "表格已保存")
	assert.False(t, c.Active())
	assert.True(t, h.surface.has("removeMarker", "csv-0"))
	assert.True(t, *saved)
}

func TestCsvSaveFileNameFallback(t *testing.T) {
	h, c, _ := newCsvHarness()
	c.LoadPreview("外业点位", []string{"名称"}, csvRows([]string{"a"}))
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{105, 27})

	c.Save("")
	h.drain(t)
	assert.Equal(t, "外业点位", h.boundary.committedArgs().LayerName)
}

func TestCsvSaveEmptyNameRejected(t *testing.T) {
	h, c, _ := newCsvHarness()
	c.LoadPreview("", []string{"名称"}, csvRows([]string{"a"}))
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{105, 27})

	c.Save("")
	assert.Equal(t, 0, h.boundary.commitCount())
	assert.Contains(t, h.notifier.last(), "名称不能为空")
}

func TestCsvSaveFailureRetryable(t *testing.T) {
	h, c, saved := newCsvHarness()
	h.boundary.commitErr = errors.New("数据库不可用")
	c.LoadPreview("points.csv", []string{"名称"}, csvRows([]string{"a"}))
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{105, 27})

	c.Save("新图层")
	h.drain(t)
	assert.Contains(t, h.notifier.last(), "表格保存失败")
	assert.True(t, c.Active())
	assert.False(t, *saved)
	assert.False(t, h.surface.has("removeMarker", "csv-0"))

	h.boundary.commitErr = nil
	c.Save("新图层")
	h.drain(t)
	assert.False(t, c.Active())
	assert.True(t, *saved)
	assert.Equal(t, 2, h.boundary.commitCount())
}

func TestCsvSaveInFlightIgnoresRepeat(t *testing.T) {
	h, c, _ := newCsvHarness()
	c.LoadPreview("points.csv", []string{"名称"}, csvRows([]string{"a"}))
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{105, 27})

	c.Save("新图层")
	c.Save("新图层")
	h.drain(t)
	assert.Equal(t, 1, h.boundary.commitCount())
}

func TestCsvDiscard(t *testing.T) {
	h, c, _ := newCsvHarness()
	c.LoadPreview("points.csv", []string{"名称"}, csvRows([]string{"a"}, []string{"b"}))
	c.ArmRow(1)
	c.HandleMapClick(orb.Point{105, 27})

	c.Discard()
	assert.False(t, c.Active())
	assert.Empty(t, h.store.CsvRows)
	assert.Empty(t, h.store.CsvHeader)
	assert.True(t, h.surface.has("removeMarker", "csv-1"))
}

func TestCsvLoadPreviewClearsOldMarkers(t *testing.T) {
	h, c, _ := newCsvHarness()
	c.LoadPreview("a.csv", []string{"名称"}, csvRows([]string{"a"}))
	c.ArmRow(0)
	c.HandleMapClick(orb.Point{105, 27})

	c.LoadPreview("b.csv", []string{"名称"}, csvRows([]string{"b"}))
	assert.True(t, h.surface.has("removeMarker", "csv-0"))
	assert.Nil(t, h.store.CsvRows[0].Coord)
}
