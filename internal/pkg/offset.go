package pkg

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOffset 将配置中的偏移量文本转换为整数
//   - "0x10" 按十六进制解析剩余部分
//   - "020"  以 0 开头按八进制解析剩余部分
//   - 其余按十进制解析
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "+-") {
		return 0, fmt.Errorf("偏移量 %q 不能带符号", s)
	}
	var (
		v   int64
		err error
	)
	switch {
	case strings.HasPrefix(s, "0x"):
		v, err = strconv.ParseInt(s[2:], 16, 0)
	case s == "0":
		return 0, nil
	case strings.HasPrefix(s, "0"):
		v, err = strconv.ParseInt(s[1:], 8, 0)
	default:
		v, err = strconv.ParseInt(s, 10, 0)
	}
	if err != nil {
		return 0, fmt.Errorf("偏移量 %q 无法转换为整数: %w", s, err)
	}
	return int(v), nil
}

// OffsetTable 字段名到偏移量/记录大小的映射, 构造后只读
type OffsetTable struct {
	offsets map[string]int
	sizes   map[string]int
}

// NewOffsetTable 在加载时一次性完成偏移量的规范化
func NewOffsetTable(pointers map[string]string, sizes map[string]int) (*OffsetTable, error) {
	t := &OffsetTable{
		offsets: make(map[string]int, len(pointers)),
		sizes:   make(map[string]int, len(sizes)),
	}
	for name, raw := range pointers {
		off, err := ParseOffset(raw)
		if err != nil {
			return nil, fmt.Errorf("字段 %s: %w", name, err)
		}
		t.offsets[name] = off
	}
	for name, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("字段 %s: 记录大小必须大于 0, 实际为 %d", name, size)
		}
		t.sizes[name] = size
	}
	return t, nil
}

// OffsetTableFromConfig 从已加载的配置构造 OffsetTable
func OffsetTableFromConfig(c *Config) (*OffsetTable, error) {
	return NewOffsetTable(c.DataPointers, c.StructureSizes)
}

// Offset 返回字段的偏移量, 字段不存在时 ok 为 false
func (t *OffsetTable) Offset(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	off, ok := t.offsets[name]
	return off, ok
}

// Size 返回字段的记录大小, 字段不存在时 ok 为 false
func (t *OffsetTable) Size(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	size, ok := t.sizes[name]
	return size, ok
}
