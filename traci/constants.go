package traci

// TraCI协议常量，取值与SUMO的TraCIConstants保持一致

// 命令ID
const (
	CMD_GETVERSION = 0x00
	CMD_SIMSTEP    = 0x02
	CMD_CLOSE      = 0x7f

	CMD_GET_TL_VARIABLE            = 0xa2
	RESPONSE_GET_TL_VARIABLE       = 0xb2
	CMD_SUBSCRIBE_TL_VARIABLE      = 0xd2
	RESPONSE_SUBSCRIBE_TL_VARIABLE = 0xe2

	CMD_GET_VEHICLE_VARIABLE            = 0xa4
	RESPONSE_GET_VEHICLE_VARIABLE       = 0xb4
	CMD_SUBSCRIBE_VEHICLE_VARIABLE      = 0xd4
	RESPONSE_SUBSCRIBE_VEHICLE_VARIABLE = 0xe4

	CMD_GET_PERSON_VARIABLE            = 0xae
	RESPONSE_GET_PERSON_VARIABLE       = 0xbe
	CMD_SUBSCRIBE_PERSON_VARIABLE      = 0xde
	RESPONSE_SUBSCRIBE_PERSON_VARIABLE = 0xee
)

// 变量ID
const (
	ID_LIST = 0x00

	TL_RED_YELLOW_GREEN_STATE = 0x20
	TL_CURRENT_PHASE          = 0x28
	TL_CURRENT_PROGRAM        = 0x29
	TL_NEXT_SWITCH            = 0x2d

	VAR_SPEED    = 0x40
	VAR_POSITION = 0x42
	VAR_ANGLE    = 0x43
	VAR_LENGTH   = 0x44
	VAR_WIDTH    = 0x4d
	VAR_TYPE     = 0x4f
	VAR_ROAD_ID  = 0x50
	VAR_SIGNALS  = 0x5b
	VAR_HEIGHT   = 0xbc
)

// 数据类型
const (
	POSITION_2D     = 0x01
	TYPE_UBYTE      = 0x07
	TYPE_BYTE       = 0x08
	TYPE_INTEGER    = 0x09
	TYPE_DOUBLE     = 0x0b
	TYPE_STRING     = 0x0c
	TYPE_STRINGLIST = 0x0e
)

// 响应状态
const (
	RTYPE_OK             = 0x00
	RTYPE_NOTIMPLEMENTED = 0x01
	RTYPE_ERR            = 0xff
)

// StatusName 返回响应状态的可读名称
func StatusName(status uint8) string {
	switch status {
	case RTYPE_OK:
		return "OK"
	case RTYPE_NOTIMPLEMENTED:
		return "NOT_IMPLEMENTED"
	case RTYPE_ERR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
