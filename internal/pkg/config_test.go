package pkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
	require.NoError(t, err, "创建配置文件失败")
}

// TestInitCommon 测试 InitCommon 函数
func TestInitCommon(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, tempDir, "romkit.yaml", `
version: "1.0.0"
log:
  log_path: ./logs/romkit.log
  max_size: 512
  max_backups: 10
  max_age: 365
  compress: true
  level: debug
text:
  fallback: "?"
data_pointers:
  magic_names: "0x2BE03"
  magic_data: "0301660"
  weapon_data: "123456"
structure_sizes:
  magic_data: 8
record_layouts:
  magic:
    names: magic_names
    pointer: magic_data
    count: 64
    fields:
      hit_rate: "Bytes[0]"
`)
	// 码表单独放在一个 json 文件中, 顺序必须保留
	writeFile(t, tempDir, "text.json", `{
  "text_table": {
    "FF": " ",
    "80": "0",
    "3A": " ",
    "8A": "a"
  }
}`)

	config, v, err := InitCommon(tempDir)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "1.0.0", config.Version)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, 512, config.Log.MaxSize)
	assert.Equal(t, "?", config.Text.Fallback)
	assert.Equal(t, "0x2BE03", config.DataPointers["magic_names"])
	assert.Equal(t, 8, config.StructureSizes["magic_data"])
	assert.Contains(t, config.RecordLayouts, "magic")
	assert.Equal(t, []TextEntry{
		{Key: "FF", Token: " "},
		{Key: "80", Token: "0"},
		{Key: "3A", Token: " "},
		{Key: "8A", Token: "a"},
	}, config.TextTable)
}

// TestInitCommonTextTableList 码表也可以写成列表
func TestInitCommonTextTableList(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, tempDir, "text.yaml", `
text_table:
  - key: "8a"
    token: "a"
  - key: "8b"
    token: "b "
`)
	config, _, err := InitCommon(tempDir)
	require.NoError(t, err)
	assert.Equal(t, []TextEntry{{Key: "8a", Token: "a"}, {Key: "8b", Token: "b "}}, config.TextTable)
}

// TestInitCommonFieldNameCase 字段名保持配置中的大小写
func TestInitCommonFieldNameCase(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, tempDir, "a.yaml", `
data_pointers:
  MagicNames: "0x10"
  magic_data: "0x20"
structure_sizes:
  MagicData: 8
`)
	// 后加载的文件覆盖同名字段, 写法也以它为准
	writeFile(t, tempDir, "b.json", `{"data_pointers": {"Magic_Data": "0x30"}}`)

	config, _, err := InitCommon(tempDir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MagicNames": "0x10", "Magic_Data": "0x30"}, config.DataPointers)
	assert.Equal(t, map[string]int{"MagicData": 8}, config.StructureSizes)

	offsets, err := OffsetTableFromConfig(config)
	require.NoError(t, err)
	off, ok := offsets.Offset("MagicNames")
	assert.True(t, ok)
	assert.Equal(t, 0x10, off)
	_, ok = offsets.Offset("magicnames")
	assert.False(t, ok)
	size, ok := offsets.Size("MagicData")
	assert.True(t, ok)
	assert.Equal(t, 8, size)
}

// TestInitCommonConfigFileNotFound 测试配置目录不存在时的错误处理
func TestInitCommonConfigFileNotFound(t *testing.T) {
	_, _, err := InitCommon("/invalid/path")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "访问路径 /invalid/path"), err.Error())
}

// TestInitCommonInvalidConfigFormat 测试配置文件格式错误时的处理
func TestInitCommonInvalidConfigFormat(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, tempDir, "invalid_config.yaml", `
data_pointers
  magic_names: "0x10"
`) // 缺少冒号
	_, _, err := InitCommon(tempDir)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "读取配置文件失败"), err.Error())
}

// TestUnmarshalConfig 类型不匹配时反序列化失败
func TestUnmarshalConfig(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, tempDir, "invalid_config.yaml", `
structure_sizes:
  magic_data: "not_a_number"
`)
	_, _, err := InitCommon(tempDir)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "反序列化配置失败"), err.Error())
}

// TestInitCommonBadTextTable 码表的值必须是字符串
func TestInitCommonBadTextTable(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, tempDir, "text.yaml", `
text_table:
  "8A":
    - a
`)
	_, _, err := InitCommon(tempDir)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "读取码表失败"), err.Error())
}

// TestWithConfigAndConfigFromContext 测试 WithConfig 和 ConfigFromContext 函数
func TestWithConfigAndConfigFromContext(t *testing.T) {
	testConfig := &Config{Version: "1.0.0"}
	ctx := WithConfig(context.Background(), testConfig)
	assert.Same(t, testConfig, ConfigFromContext(ctx))
	assert.Nil(t, ConfigFromContext(context.Background()))
}
