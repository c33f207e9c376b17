package rom

import (
	"bytes"
	"errors"
	"fmt"

	"romkit/internal/codec"
	"romkit/internal/pkg"
)

// Record 一条定长记录的原始字节
type Record []byte

// NamedRecord 名称表中的名称与同序号的记录
type NamedRecord struct {
	Name string
	Data Record
}

// Reader 在只读镜像上按字段读取数据
type Reader struct {
	data    []byte
	table   *codec.SymbolTable
	offsets *pkg.OffsetTable
	metrics *pkg.Metrics
}

// ReaderOption 配置 Reader
type ReaderOption func(*Reader)

// WithMetrics 为 Reader 挂载计数指标
func WithMetrics(m *pkg.Metrics) ReaderOption {
	return func(r *Reader) { r.metrics = m }
}

// NewReader 创建 Reader, data 在之后不应被修改
func NewReader(data []byte, table *codec.SymbolTable, offsets *pkg.OffsetTable, opts ...ReaderOption) *Reader {
	r := &Reader{data: data, table: table, offsets: offsets}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Len 返回镜像长度
func (r *Reader) Len() int { return len(r.data) }

// ReadString 读取字段处以结束符结尾的字符串
func (r *Reader) ReadString(field string) (string, bool, error) {
	off, ok := r.offsets.Offset(field)
	if !ok {
		return "", false, nil
	}
	s, _, err := r.scanString(field, off)
	if err != nil {
		return "", true, err
	}
	r.metrics.IncStrings(1)
	return s, true, nil
}

// ReadStringTable 从字段处连续读取 count 个首尾相接的字符串
func (r *Reader) ReadStringTable(field string, count int) ([]string, bool, error) {
	if count < 0 {
		return nil, false, ErrNegativeCount
	}
	off, ok := r.offsets.Offset(field)
	if !ok {
		return nil, false, nil
	}
	out := make([]string, 0, count)
	cursor := off
	for i := 0; i < count; i++ {
		s, next, err := r.scanString(field, cursor)
		if err != nil {
			return nil, true, fmt.Errorf("第 %d 个字符串: %w", i, err)
		}
		out = append(out, s)
		cursor = next
	}
	r.metrics.IncStrings(count)
	return out, true, nil
}

// ReadRecords 以 sizeField 的大小为步长, 从 pointerField 处读取 count 条记录
func (r *Reader) ReadRecords(pointerField, sizeField string, count int) ([]Record, bool, error) {
	if count < 0 {
		return nil, false, ErrNegativeCount
	}
	base, ok := r.offsets.Offset(pointerField)
	if !ok {
		return nil, false, nil
	}
	stride, ok := r.offsets.Size(sizeField)
	if !ok {
		return nil, false, nil
	}
	// 先整体检查范围, 越界时不返回部分结果
	if base > len(r.data) || count > (len(r.data)-base)/stride {
		r.metrics.IncError(pkg.ErrKindOverrun)
		return nil, true, &BufferOverrunError{Field: pointerField, Offset: base, Need: count * stride, Len: len(r.data)}
	}
	records := make([]Record, count)
	for i := range records {
		start := base + i*stride
		rec := make(Record, stride)
		copy(rec, r.data[start:start+stride])
		records[i] = rec
	}
	r.metrics.IncRecords(count)
	return records, true, nil
}

// ReadNamedRecords 读取名称表和记录表并按序号一一配对
func (r *Reader) ReadNamedRecords(nameField, pointerField, sizeField string, count int) ([]NamedRecord, bool, error) {
	names, ok, err := r.ReadStringTable(nameField, count)
	if err != nil || !ok {
		return nil, ok, err
	}
	records, ok, err := r.ReadRecords(pointerField, sizeField, count)
	if err != nil || !ok {
		return nil, ok, err
	}
	named, err := Zip(names, records)
	if err != nil {
		r.metrics.IncError(pkg.ErrKindCount)
		return nil, true, err
	}
	return named, true, nil
}

// Zip 将名称与记录按序号配对, 数量不一致时返回 ErrCountMismatch
func Zip(names []string, records []Record) ([]NamedRecord, error) {
	if len(names) != len(records) {
		return nil, fmt.Errorf("%w: names=%d, records=%d", ErrCountMismatch, len(names), len(records))
	}
	out := make([]NamedRecord, len(names))
	for i := range names {
		out[i] = NamedRecord{Name: names[i], Data: records[i]}
	}
	return out, nil
}

// scanString 从 off 开始扫描到结束符并解码, 返回结束符之后的位置
func (r *Reader) scanString(field string, off int) (string, int, error) {
	if off >= len(r.data) {
		r.metrics.IncError(pkg.ErrKindOverrun)
		return "", 0, &BufferOverrunError{Field: field, Offset: off, Need: 1, Len: len(r.data)}
	}
	n := bytes.IndexByte(r.data[off:], codec.Terminator)
	if n < 0 {
		r.metrics.IncError(pkg.ErrKindOverrun)
		return "", 0, &BufferOverrunError{Field: field, Offset: off, Need: len(r.data) - off + 1, Len: len(r.data)}
	}
	s, err := r.table.Decode(r.data[off : off+n])
	if err != nil {
		var tokErr *codec.MissingTokenError
		if errors.As(err, &tokErr) {
			r.metrics.IncError(pkg.ErrKindToken)
			// 换算为镜像中的绝对偏移
			return "", 0, &codec.MissingTokenError{Byte: tokErr.Byte, Pos: off + tokErr.Pos}
		}
		return "", 0, err
	}
	return s, off + n + 1, nil
}
