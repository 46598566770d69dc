package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/GrainArc/TraceMap/Transformer"
	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/workflows"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 新建图层的默认样式
const defaultLayerColor = "#3388FF"

type PersistService struct {
	DB *gorm.DB
}

func NewPersistService(db *gorm.DB) *PersistService {
	return &PersistService{DB: db}
}

// LoadLayers 取出工程全部图层与要素 按排序号升序
func (s *PersistService) LoadLayers(projectBSM string) ([]*workspace.Layer, error) {
	var layerRows []models.Layer
	if err := s.DB.Where("project_bsm = ?", projectBSM).Order("order_index asc").Find(&layerRows).Error; err != nil {
		return nil, fmt.Errorf("查询图层失败: %w", err)
	}
	layers := make([]*workspace.Layer, 0, len(layerRows))
	for _, row := range layerRows {
		var featRows []models.Feature
		if err := s.DB.Where("layer_bsm = ?", row.BSM).Find(&featRows).Error; err != nil {
			return nil, fmt.Errorf("查询要素失败: %w", err)
		}
		layer := &workspace.Layer{
			BSM:        row.BSM,
			Name:       row.Name,
			OrderIndex: row.OrderIndex,
			IsVisible:  row.IsVisible,
			Style: workspace.Style{
				Color:   row.Color,
				Opacity: row.Opacity,
				Size:    row.Size,
			},
		}
		for _, fr := range featRows {
			geom, err := DecodeGeometry(fr.Geojson)
			if err != nil {
				// 坏行跳过 不影响整个工作区加载
				log.Printf("要素%s几何解码失败: %v", fr.BSM, err)
				continue
			}
			props := geojson.Properties{}
			if len(fr.Properties) > 0 {
				if err := json.Unmarshal(fr.Properties, &props); err != nil {
					log.Printf("要素%s属性解码失败: %v", fr.BSM, err)
					props = geojson.Properties{}
				}
			}
			layer.Features = append(layer.Features, &workspace.Feature{
				BSM:        fr.BSM,
				LayerBSM:   fr.LayerBSM,
				IsVisible:  fr.IsVisible,
				Geometry:   geom,
				Properties: props,
			})
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

// AddFeature 向已有图层追加单个要素
func (s *PersistService) AddFeature(projectBSM string, layerBSM string, geom orb.Geometry, props geojson.Properties) error {
	var layer models.Layer
	if err := s.DB.Where("bsm = ? AND project_bsm = ?", layerBSM, projectBSM).First(&layer).Error; err != nil {
		return fmt.Errorf("目标图层不存在: %w", err)
	}
	row, err := buildFeatureRow(layerBSM, geom, props)
	if err != nil {
		return err
	}
	if err := s.DB.Create(row).Error; err != nil {
		return fmt.Errorf("要素写入失败: %w", err)
	}
	return nil
}

// CreateLayer 建新图层并整批写入要素 返回图层BSM
// 中途失败时删掉刚建的图层 不留半成品
func (s *PersistService) CreateLayer(projectBSM string, name string, feats []workflows.NewFeature) (string, error) {
	if name == "" {
		return "", errors.New("图层名称不能为空")
	}
	if len(feats) == 0 {
		return "", errors.New("没有可入库的要素")
	}
	class := ""
	for _, f := range feats {
		if c := workspace.GeomClass(f.Geometry); c != "" {
			class = c
			break
		}
	}
	if class == "" {
		return "", errors.New("要素几何类型无法识别")
	}

	layerRow := &models.Layer{
		BSM:        uuid.New().String(),
		ProjectBSM: projectBSM,
		Name:       name,
		GeomType:   class,
		OrderIndex: s.nextOrderIndex(projectBSM),
		IsVisible:  true,
		Color:      defaultLayerColor,
		Opacity:    defaultOpacity(class),
		Size:       defaultSize(class),
		Date:       time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := s.DB.Create(layerRow).Error; err != nil {
		return "", fmt.Errorf("图层创建失败: %w", err)
	}

	rows := make([]*models.Feature, 0, len(feats))
	for _, f := range feats {
		row, err := buildFeatureRow(layerRow.BSM, f.Geometry, f.Properties)
		if err != nil {
			s.rollbackLayer(layerRow.BSM)
			return "", err
		}
		rows = append(rows, row)
	}
	if err := s.DB.CreateInBatches(rows, 500).Error; err != nil {
		s.rollbackLayer(layerRow.BSM)
		return "", fmt.Errorf("要素整批写入失败: %w", err)
	}
	return layerRow.BSM, nil
}

func (s *PersistService) CreateLayerWithFeatures(projectBSM string, name string, feats []workflows.NewFeature) error {
	_, err := s.CreateLayer(projectBSM, name, feats)
	return err
}

// CommitCsv 解析表格文本建点图层 经纬度非法的行丢弃只计数
func (s *PersistService) CommitCsv(args workflows.CsvCommitArgs) (workflows.CsvCommitStats, error) {
	stats := workflows.CsvCommitStats{}
	header, records, err := Transformer.ReadCsvText(args.CsvText)
	if err != nil {
		return stats, fmt.Errorf("表格解析失败: %w", err)
	}
	latIdx := indexOf(header, args.LatCol)
	lonIdx := indexOf(header, args.LonCol)
	if latIdx < 0 || lonIdx < 0 {
		return stats, errors.New("经纬度列不存在")
	}
	var includeIdx []int
	for _, col := range args.Included {
		if idx := indexOf(header, col); idx >= 0 {
			includeIdx = append(includeIdx, idx)
		}
	}

	var feats []workflows.NewFeature
	for _, rec := range records {
		if latIdx >= len(rec) || lonIdx >= len(rec) {
			stats.Dropped++
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec[lonIdx]), 64)
		if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			stats.Dropped++
			continue
		}
		props := geojson.Properties{}
		for _, idx := range includeIdx {
			if idx < len(rec) {
				props[header[idx]] = rec[idx]
			}
		}
		feats = append(feats, workflows.NewFeature{Geometry: orb.Point{lon, lat}, Properties: props})
	}
	if len(feats) == 0 {
		return stats, errors.New("没有有效坐标行")
	}

	layerBSM, err := s.CreateLayer(args.ProjectBSM, args.LayerName, feats)
	if err != nil {
		return stats, err
	}
	stats.LayerBSM = layerBSM
	stats.Inserted = len(feats)
	if stats.Dropped > 0 {
		log.Printf("表格入库丢弃%d条非法坐标行", stats.Dropped)
	}
	return stats, nil
}

// rollbackLayer 删除半成品图层及其已写入要素
func (s *PersistService) rollbackLayer(layerBSM string) {
	if err := s.DB.Where("layer_bsm = ?", layerBSM).Delete(&models.Feature{}).Error; err != nil {
		log.Printf("回滚要素失败: %v", err)
	}
	if err := s.DB.Where("bsm = ?", layerBSM).Delete(&models.Layer{}).Error; err != nil {
		log.Printf("回滚图层失败: %v", err)
	}
}

func (s *PersistService) nextOrderIndex(projectBSM string) int {
	var max int
	s.DB.Model(&models.Layer{}).Where("project_bsm = ?", projectBSM).
		Select("COALESCE(MAX(order_index), -1)").Scan(&max)
	return max + 1
}

func buildFeatureRow(layerBSM string, geom orb.Geometry, props geojson.Properties) (*models.Feature, error) {
	geomBytes, err := EncodeGeometry(geom)
	if err != nil {
		return nil, fmt.Errorf("几何编码失败: %w", err)
	}
	propBytes, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("属性编码失败: %w", err)
	}
	return &models.Feature{
		BSM:        uuid.New().String(),
		LayerBSM:   layerBSM,
		IsVisible:  true,
		Geojson:    geomBytes,
		Properties: datatypes.JSON(propBytes),
	}, nil
}

func DecodeGeometry(data []byte) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	return g.Geometry(), nil
}

func EncodeGeometry(g orb.Geometry) ([]byte, error) {
	return json.Marshal(geojson.NewGeometry(g))
}

func defaultOpacity(class string) float64 {
	if class == "polygon" {
		return 0.6
	}
	return 1
}

func defaultSize(class string) float64 {
	if class == "point" {
		return 6
	}
	return 2
}

func indexOf(list []string, v string) int {
	for i, item := range list {
		if item == v {
			return i
		}
	}
	return -1
}
