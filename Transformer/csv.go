package Transformer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/saintfish/chardet"
)

const (
	synthLatBase = "纬度"
	synthLonBase = "经度"
)

// ReadCsvText 解析UTF-8表格文本 首行为表头
func ReadCsvText(text string) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("表格解析失败: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("表格内容为空")
	}
	return rows[0], rows[1:], nil
}

// ReadCsvBytes 解析上传的表格文件 GBK系编码自动转为UTF-8
// 额外返回转码后的文本 供入库时原样回传
func ReadCsvBytes(data []byte) ([]string, [][]string, string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	text := string(data)
	if charset := DetectCharset(data); strings.Contains(charset, "GB") {
		text = GbkToUtf8(text)
	}
	header, records, err := ReadCsvText(text)
	return header, records, text, err
}

// WriteCsvText 序列化表格 含逗号引号换行的单元格自动加引号
func WriteCsvText(header []string, records [][]string) string {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	w.Write(header)
	w.WriteAll(records)
	w.Flush()
	return buf.String()
}

// SynthCoordColumns 生成与原表头不重名的经纬度列名
func SynthCoordColumns(header []string) (string, string) {
	return uniqueColumn(header, synthLatBase), uniqueColumn(header, synthLonBase)
}

func uniqueColumn(header []string, base string) string {
	name := base
	for n := 1; containsColumn(header, name); n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	return name
}

func containsColumn(header []string, name string) bool {
	for _, col := range header {
		if col == name {
			return true
		}
	}
	return false
}

// DetectCharset 探测文本编码 失败时按UTF-8处理
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil {
		return "UTF-8"
	}
	return result.Charset
}
