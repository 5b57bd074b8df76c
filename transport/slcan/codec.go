package slcan

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/moffa90/go-canboot/protocol"
)

// bitrateCodes maps bit rates to the Lawicel "Sn" setup command.
var bitrateCodes = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// BitrateCommand returns the "Sn\r" command for bitrate.
func BitrateCommand(bitrate int) (string, error) {
	code, ok := bitrateCodes[bitrate]
	if !ok {
		return "", fmt.Errorf("unsupported bitrate %d", bitrate)
	}
	return "S" + string(code) + "\r", nil
}

// EncodeFrame formats f as a standard data frame command:
//
//	tIIIL[DD...]\r
func EncodeFrame(f protocol.Frame) string {
	var b strings.Builder
	b.WriteByte('t')
	fmt.Fprintf(&b, "%03X", f.ID&protocol.MaxStandardID)
	b.WriteByte('0' + f.Len)
	for _, v := range f.Payload() {
		fmt.Fprintf(&b, "%02X", v)
	}
	b.WriteByte('\r')
	return b.String()
}

// ParseLine parses one received line without its terminating '\r'.
// Only standard data frames ('t') carry protocol traffic; other lines are
// reported with ok false.
func ParseLine(line string) (f protocol.Frame, ok bool, err error) {
	if len(line) == 0 || line[0] != 't' {
		return f, false, nil
	}
	if len(line) < 5 {
		return f, false, &protocol.ProtocolError{Operation: "parse slcan", Reason: "line too short"}
	}

	id, err := strconv.ParseUint(line[1:4], 16, 16)
	if err != nil {
		return f, false, &protocol.ProtocolError{Operation: "parse slcan", Reason: "invalid identifier"}
	}
	dlc := int(line[4] - '0')
	if dlc > 9 {
		return f, false, &protocol.ProtocolError{Operation: "parse slcan", Reason: "invalid length"}
	}
	if dlc > protocol.MaxDataLength {
		dlc = protocol.MaxDataLength
	}
	if len(line) < 5+2*dlc {
		return f, false, &protocol.ProtocolError{Operation: "parse slcan", Reason: "truncated data"}
	}
	data, err := hex.DecodeString(line[5 : 5+2*dlc])
	if err != nil {
		return f, false, &protocol.ProtocolError{Operation: "parse slcan", Reason: "invalid data"}
	}

	f, err = protocol.NewFrame(uint16(id), data)
	if err != nil {
		return f, false, &protocol.ProtocolError{Operation: "parse slcan", Reason: err.Error()}
	}
	return f, true, nil
}
