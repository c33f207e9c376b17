package internal

import (
	"context"
	"fmt"
	"sort"

	"romkit/internal/codec"
	"romkit/internal/layout"
	"romkit/internal/pkg"
	"romkit/internal/rom"

	"go.uber.org/zap"
)

// Session 持有从配置构造的码表、偏移表、布局以及镜像读取器
type Session struct {
	Table   *codec.SymbolTable
	Offsets *pkg.OffsetTable
	Layouts map[string]*layout.Layout
	Reader  *rom.Reader // 没有镜像时为 nil
}

// NewSession 根据 context 中的配置组装各组件, image 可以为 nil(只做编解码)
func NewSession(ctx context.Context, image []byte, metrics *pkg.Metrics) (*Session, error) {
	log := pkg.LoggerFromContext(ctx)
	config := pkg.ConfigFromContext(ctx)
	if config == nil {
		return nil, fmt.Errorf("context 中没有配置")
	}

	// 1. 码表
	table, err := codec.FromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("构造码表失败: %w", err)
	}
	log.Debug("码表加载完成", zap.Int("bytes", table.Len()))

	// 2. 偏移表, 在这里一次性完成偏移量规范化
	offsets, err := pkg.OffsetTableFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("构造偏移表失败: %w", err)
	}

	// 3. 记录布局
	layouts, err := layout.CompileAll(config.RecordLayouts)
	if err != nil {
		return nil, fmt.Errorf("编译记录布局失败: %w", err)
	}
	log.Debug("记录布局编译完成", zap.Strings("layouts", sortedKeys(layouts)))

	s := &Session{Table: table, Offsets: offsets, Layouts: layouts}
	if image != nil {
		s.Reader = rom.NewReader(image, table, offsets, rom.WithMetrics(metrics))
		log.Debug("镜像加载完成", zap.Int("size", len(image)))
	}
	return s, nil
}

// Layout 按名称查找布局
func (s *Session) Layout(name string) (*layout.Layout, error) {
	l, ok := s.Layouts[name]
	if !ok {
		return nil, fmt.Errorf("未找到记录布局: %s (可用: %v)", name, sortedKeys(s.Layouts))
	}
	return l, nil
}

func sortedKeys(m map[string]*layout.Layout) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
