package rom

import (
	"bytes"
	"errors"
)

const (
	inesHeaderSize = 16
	// mapperMMC3 随机器会把 MMC1 升级为 MMC3, 可以据此判断镜像是否被随机化
	mapperMMC3 = 4
)

var (
	inesMagic = []byte{'N', 'E', 'S', 0x1A}

	// ErrNotINES 镜像不是 iNES 格式
	ErrNotINES = errors.New("rom: 不是 iNES 镜像")
)

// INESHeader iNES 文件头中用到的部分
type INESHeader struct {
	PRGBanks byte // 16KB 为单位
	CHRBanks byte // 8KB 为单位
	Flags6   byte
	Flags7   byte
}

// Header 解析镜像开头的 iNES 文件头
func Header(data []byte) (INESHeader, error) {
	if len(data) < inesHeaderSize {
		return INESHeader{}, &BufferOverrunError{Field: "ines_header", Offset: 0, Need: inesHeaderSize, Len: len(data)}
	}
	if !bytes.Equal(data[:4], inesMagic) {
		return INESHeader{}, ErrNotINES
	}
	return INESHeader{
		PRGBanks: data[4],
		CHRBanks: data[5],
		Flags6:   data[6],
		Flags7:   data[7],
	}, nil
}

// Mapper 低四位来自 flags6 的高四位, 高四位来自 flags7 的高四位
func (h INESHeader) Mapper() byte {
	return (h.Flags6 >> 4) | (h.Flags7 & 0xF0)
}

// IsMMC3 镜像使用 MMC3 mapper
func (h INESHeader) IsMMC3() bool {
	return h.Mapper() == mapperMMC3
}
