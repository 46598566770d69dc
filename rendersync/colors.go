package rendersync

import (
	"fmt"
	"strconv"
	"strings"
)

// 面要素描边按固定比例压暗填充色
const outlineDarkenRatio = 0.7

// DarkenColor 压暗十六进制颜色 解析失败原样返回
func DarkenColor(hex string, ratio float64) string {
	s := strings.TrimPrefix(hex, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return hex
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return hex
	}
	r := float64((v >> 16) & 0xFF)
	g := float64((v >> 8) & 0xFF)
	b := float64(v & 0xFF)
	return fmt.Sprintf("#%02x%02x%02x", int(r*ratio), int(g*ratio), int(b*ratio))
}
