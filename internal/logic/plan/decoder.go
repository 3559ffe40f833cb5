package plan

import (
	"encoding/binary"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
)

// Iterator 惰性遍历 plan 中的指令体，可通过 Reset 重新开始。
//
// 编码结构（大端序）：
//
//	[ 2 bytes length L ] [ L bytes body ] [ 2 bytes length ] [ body ] ...
//
// 返回的 body 是原 buffer 的子切片，不做拷贝。
type Iterator struct {
	buf    []byte
	offset int
	index  int
	err    error
}

// Decode 构造指令迭代器，空 buffer 得到空序列
func Decode(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// Next 返回下一条指令体；序列结束或出错时返回 false，出错原因通过 Err 获取
func (it *Iterator) Next() ([]byte, bool) {
	if it.err != nil || it.offset >= len(it.buf) {
		return nil, false
	}
	if it.offset+consts.LengthPrefixSize > len(it.buf) {
		it.err = core.MalformedPlanf("length prefix of instruction %d at offset %d exceeds buffer (len=%d)",
			it.index, it.offset, len(it.buf))
		return nil, false
	}
	size := int(binary.BigEndian.Uint16(it.buf[it.offset:]))
	start := it.offset + consts.LengthPrefixSize
	end := start + size
	if end > len(it.buf) {
		it.err = core.MalformedPlanf("instruction %d truncated: want %d bytes at offset %d, have %d",
			it.index, size, start, len(it.buf)-start)
		return nil, false
	}
	it.offset = end
	it.index++
	return it.buf[start:end:end], true
}

// Err 返回遍历过程中遇到的错误（MalformedPlan）
func (it *Iterator) Err() error { return it.err }

// Index 已成功读出的指令条数
func (it *Iterator) Index() int { return it.index }

// Reset 回到序列起点
func (it *Iterator) Reset() {
	it.offset = 0
	it.index = 0
	it.err = nil
}

// Bodies 一次性解出所有指令体
func Bodies(buf []byte) ([][]byte, error) {
	it := Decode(buf)
	var bodies [][]byte
	for {
		body, ok := it.Next()
		if !ok {
			break
		}
		bodies = append(bodies, body)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return bodies, nil
}

// Count 校验并统计指令条数
func Count(buf []byte) (int, error) {
	it := Decode(buf)
	for {
		if _, ok := it.Next(); !ok {
			break
		}
	}
	return it.Index(), it.Err()
}
