package traci

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// 单条TraCI消息允许的最大长度，超过则视为流已损坏
const maxMessageLength = 256 << 20

// Querier 发送一条命令并取回其响应的传输接口
type Querier interface {
	// Query 发送命令cmdID，校验状态响应后返回其后的响应命令字节
	Query(cmdID uint8, content []byte) ([]byte, error)
}

// StatusError TraCI服务器对某条命令返回了非OK状态
type StatusError struct {
	Command     uint8
	Status      uint8
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("traci: command 0x%02x failed with status %s: %q", e.Command, StatusName(e.Status), e.Description)
}

// Connection 到TraCI服务器的TCP连接
// 功能：负责消息外层封装（4字节消息总长度）、命令封装以及状态响应的校验
// 说明：TraCI为严格的请求-响应协议，Query在收到完整响应前阻塞，
// 互斥锁保证同一时刻只有一条命令在途
type Connection struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
}

// NewConnection 在已建立的流上创建连接，主要用于测试中的net.Pipe
func NewConnection(conn io.ReadWriteCloser) *Connection {
	return &Connection{conn: conn}
}

// Dial 连接TraCI服务器
// 功能：按给定次数与间隔重试连接，直到服务器可用
// 参数：ctx-上下文，addr-服务器地址(host:port)，retryCount-重试次数，interval-重试间隔
// 返回：连接，或最后一次失败的错误
// 说明：SUMO通常与本程序同时启动，端口在启动后的一段时间内才开始监听
func Dial(ctx context.Context, addr string, retryCount int, interval time.Duration) (*Connection, error) {
	var dialer net.Dialer
	var lastErr error
	for i := 0; i < max(retryCount, 1); i++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Infof("connected to TraCI server %s", addr)
			return NewConnection(conn), nil
		}
		lastErr = err
		log.Debugf("connect to %s failed (%d/%d): %v", addr, i+1, retryCount, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("traci server `%v` did not become ready after %d retries: %w", addr, retryCount, lastErr)
}

// Query 发送单条命令并读取完整响应
// 功能：
// 1. 写入消息：4字节总长度 + 命令（长度头、命令ID、内容）
// 2. 读取响应消息的全部字节
// 3. 校验状态响应：命令ID需与请求一致，状态为RTYPE_OK
// 返回：状态响应之后的字节（可能为空，或包含一个或多个响应命令）
func (c *Connection) Query(cmdID uint8, content []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(cmdID, content); err != nil {
		return nil, err
	}
	body, err := c.receive()
	if err != nil {
		return nil, err
	}

	r := NewReader(body)
	statusID, statusLength, err := r.ReadCommandHeader()
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if statusID != cmdID {
		return nil, fmt.Errorf("traci: status response for command 0x%02x, expected 0x%02x", statusID, cmdID)
	}
	statusStart := r.Pos()
	result, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("read status result: %w", err)
	}
	description, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("read status description: %w", err)
	}
	if r.Pos()-statusStart != statusLength {
		return nil, fmt.Errorf("traci: status response of command 0x%02x has length %d, read %d", cmdID, statusLength, r.Pos()-statusStart)
	}
	if result != RTYPE_OK {
		return nil, &StatusError{Command: cmdID, Status: result, Description: description}
	}
	return r.Rest(), nil
}

func (c *Connection) send(cmdID uint8, content []byte) error {
	payload := NewWriter().Command(cmdID, content).Bytes()
	msg := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(msg[0:4], uint32(len(msg)))
	copy(msg[4:], payload)
	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("write command 0x%02x: %w", cmdID, err)
	}
	return nil
}

func (c *Connection) receive() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, fmt.Errorf("read message header: %w", err)
	}
	total := int(binary.BigEndian.Uint32(header[:]))
	if total < 4 || total > maxMessageLength {
		return nil, fmt.Errorf("invalid message length: %d", total)
	}
	body := make([]byte, total-4)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, fmt.Errorf("read message body (%d bytes): %w", total-4, err)
	}
	return body, nil
}

// Close 关闭底层连接（不发送CMD_CLOSE，见CommandInterface.Close）
func (c *Connection) Close() error {
	return c.conn.Close()
}
