package pkg

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig 日志配置
type LogConfig struct {
	LogPath    string `mapstructure:"log_path"`
	MaxSize    int    `mapstructure:"max_size"`    // megabytes
	MaxBackups int    `mapstructure:"max_backups"` // 保留旧文件的最大个数
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
}

// TextConfig 文本编码相关的杂项配置
type TextConfig struct {
	// Fallback 非空时，解码遇到未映射的字节用它代替，而不是报错
	Fallback string `mapstructure:"fallback"`
}

// LayoutConfig 描述一张定长记录表如何被解释
//
//	record_layouts:
//	  magic:
//	    names: magic_names
//	    pointer: magic_data
//	    size: magic_data
//	    count: 64
//	    fields:
//	      hit_rate: "Bytes[0]"
type LayoutConfig struct {
	Names   string            `mapstructure:"names"`
	Pointer string            `mapstructure:"pointer"`
	Size    string            `mapstructure:"size"`
	Count   int               `mapstructure:"count"`
	Fields  map[string]string `mapstructure:"fields"`
}

// TextEntry 码表中的一项, Key 为不带 0x 的十六进制字节
type TextEntry struct {
	Key   string
	Token string
}

type Config struct {
	Version        string                    `mapstructure:"version"`
	Log            LogConfig                 `mapstructure:"log"`
	Text           TextConfig                `mapstructure:"text"`
	DataPointers   map[string]string         `mapstructure:"data_pointers"`
	StructureSizes map[string]int            `mapstructure:"structure_sizes"`
	RecordLayouts  map[string]map[string]any `mapstructure:"record_layouts"`
	// TextTable 按文件中出现的顺序保存, viper 的 map 会丢失顺序, 所以单独读取
	TextTable []TextEntry `mapstructure:"-"`
}

const (
	textTableKey      = "text_table"
	dataPointersKey   = "data_pointers"
	structureSizesKey = "structure_sizes"
)

// InitCommon 用于初始化全局配置
func InitCommon(configDir string) (*Config, *viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::")) // 默认的 . 会和字段名冲突
	v.AddConfigPath(configDir)
	v.AutomaticEnv()

	var files []string
	err := filepath.WalkDir(configDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("访问路径 %s 失败: %w", filePath, err)
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(filePath)) {
		case ".yaml", ".yml", ".json":
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var table []TextEntry
	// 小写 -> 配置中的原始写法
	pointerNames, sizeNames := make(map[string]string), make(map[string]string)
	for _, filePath := range files {
		v.SetConfigFile(filePath)
		// 读取并合并配置文件 (会覆盖之前的配置)
		if err := v.MergeInConfig(); err != nil {
			return nil, nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
		}
		root, err := readRoot(filePath)
		if err != nil {
			return nil, nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
		}
		entries, err := readTextTable(root)
		if err != nil {
			return nil, nil, fmt.Errorf("读取码表失败 %s: %w", filePath, err)
		}
		table = append(table, entries...)
		collectFieldNames(lookup(root, dataPointersKey), pointerNames)
		collectFieldNames(lookup(root, structureSizesKey), sizeNames)
	}

	var common Config
	if err := v.Unmarshal(&common); err != nil {
		return nil, nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	common.TextTable = table
	// viper 会把 map 的键转为小写, 字段名需要保持配置中的写法
	common.DataPointers = restoreCase(common.DataPointers, pointerNames)
	common.StructureSizes = restoreCase(common.StructureSizes, sizeNames)
	return &common, v, nil
}

// readRoot 返回文件的顶层映射节点, 顶层不是映射时返回 nil
func readRoot(filePath string) (*yaml.Node, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}
	return doc.Content[0], nil
}

// lookup 在顶层映射中查找键, 不区分大小写
func lookup(root *yaml.Node, key string) *yaml.Node {
	if root == nil {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if strings.EqualFold(root.Content[i].Value, key) {
			return root.Content[i+1]
		}
	}
	return nil
}

// readTextTable 以文档顺序读取 text_table, 文件中没有该键时返回 nil
func readTextTable(root *yaml.Node) ([]TextEntry, error) {
	node := lookup(root, textTableKey)
	if node == nil {
		return nil, nil
	}
	return decodeTextTable(node)
}

// collectFieldNames 记录映射中字段名的原始写法, 后出现的文件覆盖之前的
func collectFieldNames(node *yaml.Node, names map[string]string) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		names[strings.ToLower(name)] = name
	}
}

// restoreCase 按原始写法重建 viper 解出的 map
func restoreCase[V any](m map[string]V, names map[string]string) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, val := range m {
		if name, ok := names[k]; ok {
			k = name
		}
		out[k] = val
	}
	return out
}

// decodeTextTable 支持两种写法: 映射 {"80": "0"} 或列表 [{key: "80", token: "0"}]
func decodeTextTable(node *yaml.Node) ([]TextEntry, error) {
	switch node.Kind {
	case yaml.MappingNode:
		entries := make([]TextEntry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("第 %d 行: 码表 %q 的值必须是字符串", val.Line, k.Value)
			}
			entries = append(entries, TextEntry{Key: k.Value, Token: val.Value})
		}
		return entries, nil
	case yaml.SequenceNode:
		var list []struct {
			Key   string `yaml:"key"`
			Token string `yaml:"token"`
		}
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		entries := make([]TextEntry, 0, len(list))
		for _, e := range list {
			entries = append(entries, TextEntry{Key: e.Key, Token: e.Token})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("第 %d 行: text_table 必须是映射或列表", node.Line)
	}
}
