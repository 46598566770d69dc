package views

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GrainArc/TraceMap/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imageUploadDTO struct {
	BSM  string
	Name string
	URL  string
}

func uploadTestImage(t *testing.T, env *viewEnv, projectBSM string, data []byte) imageUploadDTO {
	t.Helper()
	req := multipartUpload(t, "/georef/UploadImage", map[string]string{"ProjectID": projectBSM}, "plan.png", data)
	w := env.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out imageUploadDTO
	decodeData(t, decodeAPI(t, w), &out)
	require.NotEmpty(t, out.BSM)
	require.NotEmpty(t, out.URL)
	return out
}

// servePath 把签名链接还原成本地路由可访问的路径
func servePath(t *testing.T, signed string) string {
	t.Helper()
	u, err := url.Parse(signed)
	require.NoError(t, err)
	return u.Path + "?" + u.RawQuery
}

func TestUploadImageIssuesSignedURL(t *testing.T) {
	env := newViewEnv(t)
	p := seedProject(t, env.db, "p")
	raw := []byte("fake-png-bytes")

	out := uploadTestImage(t, env, p.BSM, raw)
	assert.Equal(t, "plan.png", out.Name)

	u, err := url.Parse(out.URL)
	require.NoError(t, err)
	assert.Equal(t, "/georef/Image/"+out.BSM, u.Path)
	assert.NotEmpty(t, u.Query().Get("token"))
	assert.NotEmpty(t, u.Query().Get("expires"))

	var img models.RasterImage
	require.NoError(t, env.db.Where("bsm = ?", out.BSM).First(&img).Error)
	assert.Equal(t, p.BSM, img.ProjectBSM)
	assert.Equal(t, u.Query().Get("token"), img.Token)
	assert.True(t, img.Expires > time.Now().Unix())

	w := env.do(t, getReq(servePath(t, out.URL)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, raw, w.Body.Bytes())
}

func TestUploadImageValidation(t *testing.T) {
	env := newViewEnv(t)
	p := seedProject(t, env.db, "p")

	req := multipartUpload(t, "/georef/UploadImage", map[string]string{"ProjectID": "ghost"}, "plan.png", []byte("x"))
	w := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "工程不存在", decodeAPI(t, w).Message)

	// 表单里没有文件
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("ProjectID", p.BSM))
	require.NoError(t, mw.Close())
	noFile := httptest.NewRequest(http.MethodPost, "/georef/UploadImage", &buf)
	noFile.Header.Set("Content-Type", mw.FormDataContentType())
	w = env.do(t, noFile)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "请上传影像文件", decodeAPI(t, w).Message)
}

func TestServeImageRejectsTamperedLink(t *testing.T) {
	env := newViewEnv(t)
	p := seedProject(t, env.db, "p")
	out := uploadTestImage(t, env, p.BSM, []byte("x"))

	u, err := url.Parse(out.URL)
	require.NoError(t, err)
	token := u.Query().Get("token")
	expires := u.Query().Get("expires")

	// 改令牌
	w := env.do(t, getReq(u.Path+"?token="+token+"tamper&expires="+expires))
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "链接已失效", decodeAPI(t, w).Message)

	// 改时效
	w = env.do(t, getReq(u.Path+"?token="+token+"&expires=9999999999"))
	assert.Equal(t, http.StatusGone, w.Code)

	// 缺令牌
	w = env.do(t, getReq(u.Path+"?expires="+expires))
	assert.Equal(t, http.StatusGone, w.Code)

	// 正常链接仍可用
	w = env.do(t, getReq(servePath(t, out.URL)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeImageExpiredLink(t *testing.T) {
	env := newViewEnv(t)
	p := seedProject(t, env.db, "p")
	env.uc.boundary.GeorefService.TTL = -time.Second

	out := uploadTestImage(t, env, p.BSM, []byte("x"))
	w := env.do(t, getReq(servePath(t, out.URL)))
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "链接已失效", decodeAPI(t, w).Message)
}

func TestRefreshImageURLInvalidatesOldLink(t *testing.T) {
	env := newViewEnv(t)
	p := seedProject(t, env.db, "p")
	out := uploadTestImage(t, env, p.BSM, []byte("x"))

	code, resp := env.getJSON(t, "/georef/RefreshImageURL?BSM="+out.BSM)
	require.Equal(t, http.StatusOK, code)
	var refreshed struct {
		BSM string
		URL string
	}
	decodeData(t, resp, &refreshed)
	require.NotEmpty(t, refreshed.URL)
	assert.NotEqual(t, out.URL, refreshed.URL)

	// 旧令牌作废 新令牌可用
	w := env.do(t, getReq(servePath(t, out.URL)))
	assert.Equal(t, http.StatusGone, w.Code)
	w = env.do(t, getReq(servePath(t, refreshed.URL)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshImageURLUnknown(t *testing.T) {
	env := newViewEnv(t)

	code, resp := env.getJSON(t, "/georef/RefreshImageURL?BSM=ghost")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "影像不存在", resp.Message)
}

func TestGetImagesOmitsToken(t *testing.T) {
	env := newViewEnv(t)
	p := seedProject(t, env.db, "p")
	out := uploadTestImage(t, env, p.BSM, []byte("x"))

	u, err := url.Parse(out.URL)
	require.NoError(t, err)
	token := u.Query().Get("token")

	w := env.do(t, getReq("/georef/GetImages?ProjectID="+p.BSM))
	require.Equal(t, http.StatusOK, w.Code)

	var list []struct {
		BSM  string
		Name string
		Date string
	}
	decodeData(t, decodeAPI(t, w), &list)
	require.Len(t, list, 1)
	assert.Equal(t, out.BSM, list[0].BSM)
	assert.Equal(t, "plan.png", list[0].Name)
	assert.NotEmpty(t, list[0].Date)
	// 列表响应不能把令牌带出去
	assert.NotContains(t, w.Body.String(), token)
}

func TestDelImageRemovesFileAndRow(t *testing.T) {
	env := newViewEnv(t)
	p := seedProject(t, env.db, "p")
	out := uploadTestImage(t, env, p.BSM, []byte("x"))

	diskPath := filepath.Join("Upload", out.BSM, "plan.png")
	_, err := os.Stat(diskPath)
	require.NoError(t, err)

	code, resp := env.getJSON(t, "/georef/DelImage?BSM="+out.BSM)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "影像删除成功", resp.Message)

	var count int64
	env.db.Model(&models.RasterImage{}).Where("bsm = ?", out.BSM).Count(&count)
	assert.EqualValues(t, 0, count)
	_, err = os.Stat(diskPath)
	assert.True(t, os.IsNotExist(err))

	// 重复删除按幂等处理
	code, _ = env.getJSON(t, "/georef/DelImage?BSM="+out.BSM)
	assert.Equal(t, http.StatusOK, code)
}
