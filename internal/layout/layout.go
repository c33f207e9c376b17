// Package layout 按配置中的表达式把定长记录解释为命名字段。
package layout

import (
	"errors"
	"fmt"
	"sort"

	"romkit/internal/pkg"
	"romkit/internal/rom"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mitchellh/mapstructure"
)

// Env 是字段表达式执行的环境, Bytes 为当前记录的原始字节
type Env struct {
	Bytes []byte `expr:"Bytes"`
}

// Entry 一条解释后的记录
type Entry struct {
	Name   string
	Fields map[string]any
}

type field struct {
	name    string
	source  string
	program *vm.Program
}

// Layout 编译后的记录布局
type Layout struct {
	Name   string
	config pkg.LayoutConfig
	fields []field // 按字段名排序
}

// DecodeConfig 将 record_layouts 下的原始配置转换为 LayoutConfig
func DecodeConfig(raw map[string]any) (pkg.LayoutConfig, error) {
	var c pkg.LayoutConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true, // count 可以写成字符串
		ErrorUnused:      true,
	})
	if err != nil {
		return c, fmt.Errorf("创建解码器失败: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return c, fmt.Errorf("解码布局配置失败: %w", err)
	}
	return c, nil
}

// Compile 校验布局配置并编译所有字段表达式
func Compile(name string, c pkg.LayoutConfig) (*Layout, error) {
	if c.Pointer == "" {
		return nil, fmt.Errorf("布局 %s 配置错误: 缺少 pointer", name)
	}
	if c.Size == "" {
		c.Size = c.Pointer
	}
	if c.Count < 0 {
		return nil, fmt.Errorf("布局 %s 配置错误: count 不能为负数, 实际为 %d", name, c.Count)
	}
	if len(c.Fields) == 0 {
		return nil, fmt.Errorf("布局 %s 配置错误: 没有定义字段", name)
	}

	l := &Layout{Name: name, config: c, fields: make([]field, 0, len(c.Fields))}
	for fieldName, source := range c.Fields {
		if source == "" {
			return nil, fmt.Errorf("布局 %s 的字段 %s 表达式为空", name, fieldName)
		}
		program, err := expr.Compile(source, expr.Env(Env{}))
		if err != nil {
			return nil, fmt.Errorf("编译布局 %s 的字段 %s 失败 (source: %s): %w", name, fieldName, source, err)
		}
		l.fields = append(l.fields, field{name: fieldName, source: source, program: program})
	}
	sort.Slice(l.fields, func(i, j int) bool { return l.fields[i].name < l.fields[j].name })
	return l, nil
}

// CompileAll 编译配置中的全部布局
func CompileAll(raw map[string]map[string]any) (map[string]*Layout, error) {
	layouts := make(map[string]*Layout, len(raw))
	for name, r := range raw {
		c, err := DecodeConfig(r)
		if err != nil {
			return nil, fmt.Errorf("布局 %s: %w", name, err)
		}
		l, err := Compile(name, c)
		if err != nil {
			return nil, err
		}
		layouts[name] = l
	}
	return layouts, nil
}

// FieldNames 返回排序后的字段名
func (l *Layout) FieldNames() []string {
	names := make([]string, len(l.fields))
	for i, f := range l.fields {
		names[i] = f.name
	}
	return names
}

// Decode 对一条记录执行所有字段表达式
func (l *Layout) Decode(rec rom.NamedRecord) (Entry, error) {
	env := Env{Bytes: rec.Data}
	entry := Entry{Name: rec.Name, Fields: make(map[string]any, len(l.fields))}
	for _, f := range l.fields {
		v, err := expr.Run(f.program, env)
		if err != nil {
			return Entry{}, fmt.Errorf("记录 %q 的字段 %s (%s) 计算失败: %w", rec.Name, f.name, f.source, err)
		}
		entry.Fields[f.name] = v
	}
	return entry, nil
}

// ErrNoNames 布局没有配置名称表, 无法使用 Read
var ErrNoNames = errors.New("layout: 没有配置 names 字段")

// Read 从镜像中读取名称表与记录表并逐条解释
func (l *Layout) Read(r *rom.Reader) ([]Entry, bool, error) {
	if l.config.Names == "" {
		return nil, false, ErrNoNames
	}
	named, ok, err := r.ReadNamedRecords(l.config.Names, l.config.Pointer, l.config.Size, l.config.Count)
	if err != nil || !ok {
		return nil, ok, err
	}
	entries := make([]Entry, 0, len(named))
	for _, rec := range named {
		e, err := l.Decode(rec)
		if err != nil {
			return nil, true, err
		}
		entries = append(entries, e)
	}
	return entries, true, nil
}

func (l *Layout) String() string {
	return fmt.Sprintf("Layout: Name: %s, Pointer: %s, Size: %s, Count: %d, Fields: %d",
		l.Name, l.config.Pointer, l.config.Size, l.config.Count, len(l.fields))
}
