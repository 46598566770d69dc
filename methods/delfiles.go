package methods

import (
	"fmt"
	"os"
	"path/filepath"
)

// DeleteFiles 清空文件夹内的所有内容 保留文件夹本身 目录不存在不算错
func DeleteFiles(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取目录失败: %w", err)
	}
	for _, entry := range entries {
		path := filepath.Join(dirPath, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("删除 %s 失败: %w", path, err)
		}
	}
	return nil
}
