package rom

import (
	"errors"
	"fmt"
)

var (
	// ErrCountMismatch 名称表与记录表数量不一致
	ErrCountMismatch = errors.New("rom: 名称数量与记录数量不一致")
	// ErrNegativeCount 读取数量不能为负
	ErrNegativeCount = errors.New("rom: 读取数量不能为负数")
)

// BufferOverrunError 读取会越过镜像末尾
type BufferOverrunError struct {
	Field  string
	Offset int // 读取起点
	Need   int // 需要的字节数, 字符串扫描时为已扫描的长度
	Len    int // 镜像长度
}

func (e *BufferOverrunError) Error() string {
	return fmt.Sprintf("rom: 字段 %s 越界 (offset: %d, need: %d, total: %d)", e.Field, e.Offset, e.Need, e.Len)
}
