package traci

import (
	"errors"
	"fmt"
)

// CommandInterface 对Querier的常用命令封装
type CommandInterface struct {
	q Querier
}

func NewCommandInterface(q Querier) *CommandInterface {
	return &CommandInterface{q: q}
}

// Version 查询服务器的TraCI API版本与描述
func (ci *CommandInterface) Version() (int32, string, error) {
	buf, err := ci.q.Query(CMD_GETVERSION, nil)
	if err != nil {
		return 0, "", err
	}
	r := NewReader(buf)
	if _, err := ExpectCommand(r, CMD_GETVERSION); err != nil {
		return 0, "", err
	}
	apiVersion, err := r.ReadInt32()
	if err != nil {
		return 0, "", fmt.Errorf("read api version: %w", err)
	}
	description, err := r.ReadString()
	if err != nil {
		return 0, "", fmt.Errorf("read server description: %w", err)
	}
	return apiVersion, description, nil
}

// SimulationStep 推进SUMO仿真到targetTime（秒）
// 返回：状态响应之后的订阅结果缓冲区（4字节结果数量 + 若干订阅响应命令），
// 交由subscription.Aggregator解析
func (ci *CommandInterface) SimulationStep(targetTime float64) ([]byte, error) {
	return ci.q.Query(CMD_SIMSTEP, NewWriter().Double(targetTime).Bytes())
}

// IDList 显式查询某类对象的当前全部ID
// 参数：getCmd-查询命令ID（如CMD_GET_VEHICLE_VARIABLE），respCmd-期望的响应命令ID
// 说明：用于订阅结果中缺少ID_LIST时的补充查询
func (ci *CommandInterface) IDList(getCmd, respCmd uint8) ([]string, error) {
	buf, err := ci.q.Query(getCmd, NewWriter().Uint8(ID_LIST).String("").Bytes())
	if err != nil {
		return nil, err
	}
	r := NewReader(buf)
	if _, err := ExpectCommand(r, respCmd); err != nil {
		return nil, err
	}
	variable, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if variable != ID_LIST {
		return nil, fmt.Errorf("traci: id list query answered variable 0x%02x", variable)
	}
	if _, err := r.ReadString(); err != nil {
		return nil, err
	}
	typ, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if typ != TYPE_STRINGLIST {
		return nil, fmt.Errorf("traci: id list query answered type 0x%02x, expected string list", typ)
	}
	return r.ReadStringList()
}

// Close 通知服务器结束仿真并关闭连接
func (ci *CommandInterface) Close() error {
	_, err := ci.q.Query(CMD_CLOSE, nil)
	if c, ok := ci.q.(interface{ Close() error }); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// ExpectCommand 读取响应命令头并检查命令ID，返回命令内容长度
func ExpectCommand(r *Reader, cmdID uint8) (int, error) {
	id, length, err := r.ReadCommandHeader()
	if err != nil {
		return 0, fmt.Errorf("read response header: %w", err)
	}
	if id != cmdID {
		return 0, fmt.Errorf("traci: response command 0x%02x, expected 0x%02x", id, cmdID)
	}
	if length > r.Remaining() {
		return 0, fmt.Errorf("traci: response command 0x%02x declares %d bytes, %d available", id, length, r.Remaining())
	}
	return length, nil
}
