package models

import "gorm.io/datatypes"

// 工程表 一个工程对应一套图层
type Project struct {
	BSM  string `gorm:"type:varchar(255);primary_key"`
	Name string `gorm:"type:varchar(255)"`
	Date string `gorm:"type:varchar(255)"`
}

// 图层表
type Layer struct {
	BSM        string `gorm:"type:varchar(255);primary_key"`
	ProjectBSM string `gorm:"type:varchar(255);index"`
	Name       string `gorm:"type:varchar(255)"`
	GeomType   string `gorm:"type:varchar(255)"` //point line polygon
	OrderIndex int
	IsVisible  bool
	Color      string `gorm:"type:varchar(255)"`
	Opacity    float64
	Size       float64
	Date       string `gorm:"type:varchar(255)"`
}

// 要素表 几何为GeoJSON编码
type Feature struct {
	BSM        string `gorm:"type:varchar(255);primary_key"`
	LayerBSM   string `gorm:"type:varchar(255);index"`
	IsVisible  bool
	Geojson    []byte
	Properties datatypes.JSON
}

// 底图影像表 记录上传待配准的原始影像与签名令牌
type RasterImage struct {
	BSM        string `gorm:"type:varchar(255);primary_key"`
	ProjectBSM string `gorm:"type:varchar(255);index"`
	Name       string `gorm:"type:varchar(255)"`
	Path       string `gorm:"type:varchar(255)"`
	Token      string `gorm:"type:varchar(255)"`
	Expires    int64
	Date       string `gorm:"type:varchar(255)"`
}
