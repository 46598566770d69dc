package Transformer

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFiles 递归收集目录下指定扩展名的文件 扩展名大小写不敏感
func FindFiles(root string, Exc string) []string {
	var files []string
	want := "." + strings.ToLower(Exc)
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// 解压产物中个别条目读不到时跳过 不中断整体扫描
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(d.Name())) == want {
			files = append(files, path)
		}
		return nil
	})
	return files
}
