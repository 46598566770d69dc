package workflows

import (
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Click 地图点击事件 Multi为修饰键多选
type Click struct {
	Point orb.Point
	Multi bool
}

// Notifier 用户可见的提示通道 level为info或error
type Notifier interface {
	Notify(level string, message string)
}

// NewFeature 待入库要素
type NewFeature struct {
	Geometry   orb.Geometry
	Properties geojson.Properties
}

type CsvCommitArgs struct {
	ProjectBSM string
	LayerName  string
	CsvText    string
	LatCol     string
	LonCol     string
	Included   []string
}

type CsvCommitStats struct {
	LayerBSM string
	Inserted int
	Dropped  int
}

// Boundary 工作流依赖的持久化与求解协作方 由services实现
// 所有远端失败以error返回 工作流转为提示 不向路由和同步器抛出
type Boundary interface {
	LoadLayers(projectBSM string) ([]*workspace.Layer, error)
	AddFeature(projectBSM string, layerBSM string, geom orb.Geometry, props geojson.Properties) error
	CreateLayerWithFeatures(projectBSM string, name string, feats []NewFeature) error
	CommitCsv(args CsvCommitArgs) (CsvCommitStats, error)
	// SolveGeoreference 提交前由实现方按像素质心顺时针排序控制点
	SolveGeoreference(imageURL string, gcps [4]workspace.GCP, projectBSM string) (*workspace.Overlay, error)
	DeleteImage(imageBSM string) error
	CheckImage(url string) bool
}
