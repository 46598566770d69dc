package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/GrainArc/TraceMap/config"
	"github.com/GrainArc/TraceMap/models"
	"github.com/GrainArc/TraceMap/workspace"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GeorefService 配准求解客户端与影像签名链接管理
type GeorefService struct {
	DB        *gorm.DB
	HTTP      *http.Client
	SolverURL string
	TTL       time.Duration
}

func NewGeorefService(db *gorm.DB) *GeorefService {
	return &GeorefService{
		DB:        db,
		HTTP:      &http.Client{Timeout: 60 * time.Second},
		SolverURL: config.GeorefURL,
		TTL:       time.Duration(config.SignedTTL) * time.Second,
	}
}

type gcpPayload struct {
	Px  float64 `json:"px"`
	Py  float64 `json:"py"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type solveRequest struct {
	SignedURL string       `json:"signedUrl"`
	Gcps      []gcpPayload `json:"gcps"`
	ProjectID string       `json:"projectId"`
}

type solveResponse struct {
	SignedURL string       `json:"signedUrl"`
	Bounds    [][2]float64 `json:"bounds"`
}

// SolveGeoreference 提交四个控制点求解 成功返回可直接叠加的预览
func (s *GeorefService) SolveGeoreference(imageURL string, gcps [4]workspace.GCP, projectBSM string) (*workspace.Overlay, error) {
	if s.SolverURL == "" {
		return nil, errors.New("未配置配准求解服务地址")
	}
	payload := solveRequest{SignedURL: imageURL, ProjectID: projectBSM}
	for _, g := range OrderGcpsClockwise(gcps[:]) {
		if !g.Complete() {
			return nil, errors.New("控制点不完整")
		}
		payload.Gcps = append(payload.Gcps, gcpPayload{Px: *g.Px, Py: *g.Py, Lon: *g.Lon, Lat: *g.Lat})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("请求编码失败: %w", err)
	}
	resp, err := s.HTTP.Post(s.SolverURL+"/georef", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("求解服务不可达: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("求解服务返回%d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out solveResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("求解结果解析失败: %w", err)
	}
	if out.SignedURL == "" {
		return nil, errors.New("求解结果缺少影像链接")
	}
	if len(out.Bounds) != 4 {
		return nil, errors.New("求解结果缺少四角坐标")
	}
	overlay := &workspace.Overlay{URL: out.SignedURL, Opacity: 0.8, IsVisible: true}
	for i, b := range out.Bounds {
		overlay.Bounds[i] = workspace.Coord{Lon: b[0], Lat: b[1]}
	}
	return overlay, nil
}

// OrderGcpsClockwise 以像素质心为圆心按方位角排序
// 异侧乱序的点会让变换解退化 提交前统一归位
func OrderGcpsClockwise(gcps []workspace.GCP) []workspace.GCP {
	out := append([]workspace.GCP{}, gcps...)
	var cx, cy float64
	n := 0
	for _, g := range out {
		if g.ImageSet() {
			cx += *g.Px
			cy += *g.Py
			n++
		}
	}
	if n == 0 {
		return out
	}
	cx /= float64(n)
	cy /= float64(n)
	sort.SliceStable(out, func(i, j int) bool {
		return gcpAngle(out[i], cx, cy) < gcpAngle(out[j], cx, cy)
	})
	return out
}

func gcpAngle(g workspace.GCP, cx, cy float64) float64 {
	if !g.ImageSet() {
		return math.Pi
	}
	return math.Atan2(*g.Py-cy, *g.Px-cx)
}

// IssueSignedURL 签发带时效令牌的影像访问链接
func (s *GeorefService) IssueSignedURL(img *models.RasterImage) (string, error) {
	token := uuid.New().String()
	expires := time.Now().Add(s.TTL).Unix()
	err := s.DB.Model(&models.RasterImage{}).Where("bsm = ?", img.BSM).
		Updates(map[string]interface{}{"token": token, "expires": expires}).Error
	if err != nil {
		return "", fmt.Errorf("令牌写入失败: %w", err)
	}
	img.Token = token
	img.Expires = expires
	return fmt.Sprintf("%s/georef/Image/%s?token=%s&expires=%d", config.MainOutRouter, img.BSM, token, expires), nil
}

// VerifySignedURL 令牌不匹配或已过期返回false
func (s *GeorefService) VerifySignedURL(bsm string, token string, expires int64) bool {
	var img models.RasterImage
	if err := s.DB.Where("bsm = ?", bsm).First(&img).Error; err != nil {
		return false
	}
	if img.Token == "" || img.Token != token || img.Expires != expires {
		return false
	}
	return time.Now().Unix() <= img.Expires
}

// DeleteImage 删除上传的临时影像文件与记录
func (s *GeorefService) DeleteImage(bsm string) error {
	var img models.RasterImage
	if err := s.DB.Where("bsm = ?", bsm).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if img.Path != "" {
		if err := os.Remove(img.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("删除影像文件失败: %v", err)
		}
	}
	return s.DB.Delete(&models.RasterImage{}, "bsm = ?", bsm).Error
}

// CheckImage 探测签名链接是否仍可访问
func (s *GeorefService) CheckImage(url string) bool {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
