package codec

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"romkit/internal/pkg"
)

// Terminator 字符串结束符, 不会出现在码表中
const Terminator byte = 0x00

// maxTokenRunes 编码时一次最多合并的字符数
const maxTokenRunes = 2

// SymbolTable 保存字节与文本之间的双向映射。
// 两个映射在 NewSymbolTable 中一次性建好, 之后只读, 可以被并发读取。
type SymbolTable struct {
	byteToToken [256]string
	mapped      [256]bool       // byteToToken 中哪些字节有定义
	tokenToByte map[string]byte // 同一 token 以最先定义的字节为准
	fallback    string          // 未映射字节的替代文本
	hasFallback bool
}

// Option 配置 SymbolTable
type Option func(*SymbolTable)

// WithFallback 解码遇到未映射字节时输出 token, 而不是返回 MissingTokenError
func WithFallback(token string) Option {
	return func(t *SymbolTable) {
		t.fallback = token
		t.hasFallback = true
	}
}

// NewSymbolTable 按 entries 的顺序构造码表。
//   - byte -> token: 同一字节重复定义时后者覆盖前者
//   - token -> byte: 同一 token 重复出现时保留第一个字节
func NewSymbolTable(entries []pkg.TextEntry, opts ...Option) (*SymbolTable, error) {
	t := &SymbolTable{
		tokenToByte: make(map[string]byte, len(entries)),
	}
	for _, e := range entries {
		b, err := parseKey(e.Key)
		if err != nil {
			return nil, err
		}
		t.byteToToken[b] = e.Token
		t.mapped[b] = true
		if _, seen := t.tokenToByte[e.Token]; !seen {
			t.tokenToByte[e.Token] = b
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// FromConfig 使用配置中的 text_table 和 text.fallback 构造码表
func FromConfig(c *pkg.Config) (*SymbolTable, error) {
	var opts []Option
	if c.Text.Fallback != "" {
		opts = append(opts, WithFallback(c.Text.Fallback))
	}
	return NewSymbolTable(c.TextTable, opts...)
}

func parseKey(key string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(key), 16, 8)
	if err != nil {
		return 0, &KeyError{Key: key, Err: err}
	}
	if byte(v) == Terminator {
		return 0, &KeyError{Key: key, Err: ErrReservedTerminator}
	}
	return byte(v), nil
}

// Encode 将文本编码为字节序列, 结果总是以一个 Terminator 结尾。
// 每个位置先尝试两个字符的 token, 再尝试单个字符。
func (t *SymbolTable) Encode(text string) ([]byte, error) {
	if !utf8.ValidString(text) {
		return nil, invalidUTF8(text)
	}
	runes := []rune(text)
	// 最坏情况下没有任何合并, 每个字符一个字节, 外加结束符
	out := make([]byte, 0, len(runes)+1)

	for i := 0; i < len(runes); {
		if i+maxTokenRunes <= len(runes) {
			if b, ok := t.tokenToByte[string(runes[i:i+maxTokenRunes])]; ok {
				out = append(out, b)
				i += maxTokenRunes
				continue
			}
		}
		b, ok := t.tokenToByte[string(runes[i])]
		if !ok {
			return nil, &EncodingError{Char: runes[i], Pos: i}
		}
		out = append(out, b)
		i++
	}
	return append(out, Terminator), nil
}

// Decode 将字节序列解码为文本, 遇到 Terminator 立即停止,
// 之后的字节不会被检查。data 不必以 Terminator 结尾。
func (t *SymbolTable) Decode(data []byte) (string, error) {
	var sb strings.Builder
	for i, b := range data {
		if b == Terminator {
			break
		}
		if !t.mapped[b] {
			if !t.hasFallback {
				return "", &MissingTokenError{Byte: b, Pos: i}
			}
			sb.WriteString(t.fallback)
			continue
		}
		sb.WriteString(t.byteToToken[b])
	}
	return sb.String(), nil
}

// Token 返回字节对应的文本
func (t *SymbolTable) Token(b byte) (string, bool) {
	return t.byteToToken[b], t.mapped[b]
}

// Byte 返回文本对应的字节 (重复 token 时为最先定义的字节)
func (t *SymbolTable) Byte(token string) (byte, bool) {
	b, ok := t.tokenToByte[token]
	return b, ok
}

// Len 返回已定义的字节数
func (t *SymbolTable) Len() int {
	n := 0
	for _, ok := range t.mapped {
		if ok {
			n++
		}
	}
	return n
}

// invalidUTF8 定位第一个非法字节, Pos 与 []rune 转换后的下标一致
func invalidUTF8(text string) *EncodingError {
	pos := 0
	for i := 0; i < len(text); pos++ {
		r, w := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && w == 1 {
			return &EncodingError{Char: r, Pos: pos, Invalid: true, Byte: text[i]}
		}
		i += w
	}
	return nil
}
