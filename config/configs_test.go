package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 测试目录下没有config.xml 校验缺省配置
func TestDefaultsWithoutConfigFile(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8436", MainRouter)
	assert.Equal(t, "http://127.0.0.1:8436", MainOutRouter)
	assert.Equal(t, "sqlite", DBType)
	assert.Equal(t, "tracemap", Dbname)
	assert.Equal(t, "tracemap.db", DSN)
	assert.Equal(t, "./Download", Download)
	assert.Equal(t, "./Upload", Upload)
	assert.Equal(t, 300, SignedTTL)
}
