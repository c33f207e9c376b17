package codec

import (
	"errors"
	"fmt"
)

// ErrReservedTerminator 码表中不允许出现结束符 0x00
var ErrReservedTerminator = errors.New("codec: 0x00 是保留的结束符")

// KeyError 码表的键无法解析为单个字节
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("codec: 码表键 %q 无效: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// EncodingError 输入文本中的字符在码表中没有对应字节。
// 文本不是合法 UTF-8 时 Invalid 为 true, Byte 为出错的原始字节。
type EncodingError struct {
	Char    rune
	Pos     int // 以字符(rune)计的位置
	Invalid bool
	Byte    byte
}

func (e *EncodingError) Error() string {
	if e.Invalid {
		return fmt.Sprintf("codec: 第 %d 个字符处的字节 0x%02X 不是合法的 UTF-8", e.Pos, e.Byte)
	}
	return fmt.Sprintf("codec: 第 %d 个字符 %q 没有对应的编码", e.Pos, e.Char)
}

// MissingTokenError 解码时遇到未映射的字节
type MissingTokenError struct {
	Byte byte
	Pos  int
}

func (e *MissingTokenError) Error() string {
	return fmt.Sprintf("codec: 偏移 %d 处的字节 0x%02X 没有对应的文本", e.Pos, e.Byte)
}
