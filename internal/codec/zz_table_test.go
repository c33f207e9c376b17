package codec

import (
	"errors"
	"sync"
	"testing"

	"romkit/internal/pkg"

	. "github.com/smartystreets/goconvey/convey"
)

func entries(kv ...string) []pkg.TextEntry {
	out := make([]pkg.TextEntry, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, pkg.TextEntry{Key: kv[i], Token: kv[i+1]})
	}
	return out
}

func TestSymbolTable(t *testing.T) {
	Convey("测试SymbolTable", t, func() {
		table, err := NewSymbolTable(entries(
			"01", "A",
			"02", "B",
			"03", "AB",
			"8a", "a",
			"8B", "b",
			"FF", " ",
			"C0", "…",
		))
		So(err, ShouldBeNil)
		So(table.Len(), ShouldEqual, 7)

		Convey("两个字符的 token 优先匹配", func() {
			out, err := table.Encode("AB")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []byte{0x03, 0x00})

			out, err = table.Encode("ABA")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []byte{0x03, 0x01, 0x00})

			out, err = table.Encode("BAB")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []byte{0x02, 0x03, 0x00})
		})

		Convey("空字符串只编码为结束符", func() {
			out, err := table.Encode("")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []byte{Terminator})

			s, err := table.Decode([]byte{0x00, 0x01, 0x02})
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "")
		})

		Convey("结束符只出现在末尾", func() {
			for _, text := range []string{"a", "ab ba", "AAB", "a…b", "  "} {
				out, err := table.Encode(text)
				So(err, ShouldBeNil)
				So(out[len(out)-1], ShouldEqual, Terminator)
				So(out[:len(out)-1], ShouldNotContain, Terminator)
			}
		})

		Convey("编码后解码得到原文", func() {
			for _, text := range []string{"a", "ab ba", "AAB", "a…b", "BBBA"} {
				out, err := table.Encode(text)
				So(err, ShouldBeNil)
				s, err := table.Decode(out)
				So(err, ShouldBeNil)
				So(s, ShouldEqual, text)
			}
		})

		Convey("多字节字符按 rune 处理", func() {
			out, err := table.Encode("…a")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []byte{0xC0, 0x8A, 0x00})
		})

		Convey("无法编码的字符返回 EncodingError", func() {
			_, err := table.Encode("ab…z")
			var encErr *EncodingError
			So(errors.As(err, &encErr), ShouldBeTrue)
			So(encErr.Char, ShouldEqual, 'z')
			So(encErr.Pos, ShouldEqual, 3)
			So(encErr.Invalid, ShouldBeFalse)
		})

		Convey("非法 UTF-8 报告原始字节", func() {
			_, err := table.Encode("a\xc3b")
			var encErr *EncodingError
			So(errors.As(err, &encErr), ShouldBeTrue)
			So(encErr.Invalid, ShouldBeTrue)
			So(encErr.Byte, ShouldEqual, byte(0xC3))
			So(encErr.Pos, ShouldEqual, 1)

			_, err = table.Encode("…\xff")
			So(errors.As(err, &encErr), ShouldBeTrue)
			So(encErr.Byte, ShouldEqual, byte(0xFF))
			So(encErr.Pos, ShouldEqual, 1)
		})

		Convey("解码在结束符处停止", func() {
			s, err := table.Decode([]byte{0x8A, 0xFF, 0x8B, 0x00, 0x77})
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "a b")
		})

		Convey("没有结束符时解码整个切片", func() {
			s, err := table.Decode([]byte{0x01, 0x03})
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "AAB")
		})

		Convey("未映射的字节返回 MissingTokenError", func() {
			_, err := table.Decode([]byte{0x8A, 0x44, 0x00})
			var tokErr *MissingTokenError
			So(errors.As(err, &tokErr), ShouldBeTrue)
			So(tokErr.Byte, ShouldEqual, byte(0x44))
			So(tokErr.Pos, ShouldEqual, 1)
		})

		Convey("查询单个映射", func() {
			tok, ok := table.Token(0x8A)
			So(ok, ShouldBeTrue)
			So(tok, ShouldEqual, "a")
			_, ok = table.Token(0x00)
			So(ok, ShouldBeFalse)
			b, ok := table.Byte("AB")
			So(ok, ShouldBeTrue)
			So(b, ShouldEqual, byte(0x03))
		})
	})
}

func TestSymbolTableDuplicates(t *testing.T) {
	Convey("测试重复定义", t, func() {
		Convey("同一 token 编码时使用最先定义的字节", func() {
			table, err := NewSymbolTable(entries("10", " ", "11", " "))
			So(err, ShouldBeNil)

			out, err := table.Encode(" ")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []byte{0x10, 0x00})

			s, err := table.Decode([]byte{0x11})
			So(err, ShouldBeNil)
			So(s, ShouldEqual, " ")
			s, err = table.Decode([]byte{0x10})
			So(err, ShouldBeNil)
			So(s, ShouldEqual, " ")
		})

		Convey("同一字节解码时使用最后定义的 token", func() {
			table, err := NewSymbolTable(entries("20", "x", "20", "y"))
			So(err, ShouldBeNil)

			s, err := table.Decode([]byte{0x20})
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "y")

			// 两个 token 都指向 0x20
			out, err := table.Encode("xy")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, []byte{0x20, 0x20, 0x00})
		})
	})
}

func TestSymbolTableKeys(t *testing.T) {
	Convey("测试码表键解析", t, func() {
		Convey("键不区分大小写", func() {
			table, err := NewSymbolTable(entries("aB", "x"))
			So(err, ShouldBeNil)
			b, ok := table.Byte("x")
			So(ok, ShouldBeTrue)
			So(b, ShouldEqual, byte(0xAB))
		})

		Convey("无效的键返回 KeyError", func() {
			for _, key := range []string{"", "0x10", "zz", "100", "-1"} {
				_, err := NewSymbolTable(entries(key, "x"))
				var keyErr *KeyError
				So(errors.As(err, &keyErr), ShouldBeTrue)
				So(keyErr.Key, ShouldEqual, key)
			}
		})

		Convey("结束符不能出现在码表中", func() {
			_, err := NewSymbolTable(entries("00", "x"))
			So(errors.Is(err, ErrReservedTerminator), ShouldBeTrue)
		})
	})
}

func TestSymbolTableFallback(t *testing.T) {
	Convey("设置替代文本后未映射字节不报错", t, func() {
		table, err := NewSymbolTable(entries("8A", "a"), WithFallback("?"))
		So(err, ShouldBeNil)

		s, err := table.Decode([]byte{0x8A, 0x44, 0x8A})
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "a?a")
	})

	Convey("FromConfig 读取 text.fallback", t, func() {
		table, err := FromConfig(&pkg.Config{
			Text:      pkg.TextConfig{Fallback: "_"},
			TextTable: entries("8A", "a"),
		})
		So(err, ShouldBeNil)
		s, err := table.Decode([]byte{0x01, 0x8A})
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "_a")
	})
}

func TestSymbolTableConcurrentRead(t *testing.T) {
	table, err := NewSymbolTable(entries("8A", "a", "8B", "b", "8C", "ab"))
	if err != nil {
		t.Fatalf("构造码表失败: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out, err := table.Encode("abba")
				if err != nil {
					t.Errorf("编码失败: %v", err)
					return
				}
				s, err := table.Decode(out)
				if err != nil || s != "abba" {
					t.Errorf("解码结果 %q, err=%v", s, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
