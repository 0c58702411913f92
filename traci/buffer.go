package traci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer 缓冲区中剩余字节不足
var ErrShortBuffer = errors.New("traci: short buffer")

// Reader TraCI响应缓冲区的读取游标
// 功能：在字节切片上按TraCI编码规则（大端序）顺序读取基本类型
// 说明：游标位置显式保存在Reader中，每个读取方法失败时不移动游标，
// 因此解码失败后不会留下半推进的状态
type Reader struct {
	buf []byte
	pos int
}

// NewReader 在给定字节切片上创建读取游标
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos 当前游标位置
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining 剩余未读取的字节数
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// EOF 是否已读完全部字节
func (r *Reader) EOF() bool {
	return r.pos >= len(r.buf)
}

// Rest 返回剩余未读取的字节（不复制）
func (r *Reader) Rest() []byte {
	return r.buf[r.pos:]
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip 跳过n个字节
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// ReadBytes 读取n个字节
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

// ReadUint8 读取一个无符号字节
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt32 读取4字节大端整数
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadDouble 读取8字节大端IEEE754浮点数
func (r *Reader) ReadDouble() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadString 读取长度前缀的UTF-8字符串
// 说明：长度或内容任一不足时游标回退到读取前的位置
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		r.pos = start
		return "", fmt.Errorf("string of length %d: %w", n, err)
	}
	return string(b), nil
}

// ReadStringList 读取字符串列表（4字节数量 + 若干字符串）
func (r *Reader) ReadStringList() ([]string, error) {
	start := r.pos
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		r.pos = start
		return nil, fmt.Errorf("traci: negative string list length %d", n)
	}
	// 每个字符串至少占4字节长度前缀，以此限制预分配
	list := make([]string, 0, min(int(n), r.Remaining()/4))
	for i := int32(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			r.pos = start
			return nil, fmt.Errorf("string list item %d: %w", i, err)
		}
		list = append(list, s)
	}
	return list, nil
}

// ReadCommandHeader 读取一个命令（或响应命令）的头部
// 功能：解析命令长度（1字节，为0时后随4字节扩展长度）与命令ID
// 返回：命令ID，命令内容长度（不含头部），错误
func (r *Reader) ReadCommandHeader() (cmdID uint8, contentLength int, err error) {
	start := r.pos
	length, err := r.ReadUint8()
	if err != nil {
		return 0, 0, err
	}
	headerLength := 2
	total := int(length)
	if length == 0 {
		ext, err := r.ReadInt32()
		if err != nil {
			r.pos = start
			return 0, 0, err
		}
		headerLength = 6
		total = int(ext)
	}
	if cmdID, err = r.ReadUint8(); err != nil {
		r.pos = start
		return 0, 0, err
	}
	if total < headerLength {
		r.pos = start
		return 0, 0, fmt.Errorf("traci: command 0x%02x declares length %d shorter than its header", cmdID, total)
	}
	return cmdID, total - headerLength, nil
}

// Writer TraCI请求缓冲区
// 功能：按TraCI编码规则拼装请求内容
type Writer struct {
	buf []byte
}

// NewWriter 创建空的请求缓冲区
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes 返回已写入的字节
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len 已写入的字节数
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Uint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) Int32(v int32) *Writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
	return w
}

func (w *Writer) Double(v float64) *Writer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
	return w
}

func (w *Writer) String(s string) *Writer {
	w.Int32(int32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

func (w *Writer) StringList(list []string) *Writer {
	w.Int32(int32(len(list)))
	for _, s := range list {
		w.String(s)
	}
	return w
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Command 写入一个完整命令：长度头 + 命令ID + 内容
// 说明：总长度超过255时使用扩展长度格式（长度字节为0，后随4字节长度）
func (w *Writer) Command(cmdID uint8, content []byte) *Writer {
	if total := 2 + len(content); total <= math.MaxUint8 {
		w.Uint8(uint8(total))
	} else {
		w.Uint8(0)
		w.Int32(int32(6 + len(content)))
	}
	w.Uint8(cmdID)
	w.buf = append(w.buf, content...)
	return w
}

// ExtendedCommand 总是使用扩展长度格式写入命令，与SUMO发送订阅响应的格式一致
func (w *Writer) ExtendedCommand(cmdID uint8, content []byte) *Writer {
	w.Uint8(0)
	w.Int32(int32(6 + len(content)))
	w.Uint8(cmdID)
	w.buf = append(w.buf, content...)
	return w
}
