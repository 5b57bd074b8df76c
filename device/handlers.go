package device

import (
	"github.com/moffa90/go-canboot/protocol"
)

// handle dispatches one received frame. Frames for other nodes, device to
// host traffic and malformed commands are dropped.
func (m *Machine) handle(f protocol.Frame) {
	t := f.Type()
	if t == protocol.MsgAlert || !t.Valid() {
		return
	}
	if !m.codec.Addressed(f) {
		return
	}
	args := m.codec.Args(f)

	if m.stream.active {
		if t == protocol.MsgReadData && len(args) == 0 {
			if m.stream.awaitingAck {
				m.ackChunk()
			}
			return
		}
		// Any other command aborts the stream
		m.endStream()
	}

	// Only a well-formed command counts as host contact
	var accepted bool
	switch t {
	case protocol.MsgReset:
		accepted = m.handleReset(args)
	case protocol.MsgGetInfo:
		m.contact()
		m.reply(m.codec.BuildInfo(m.cfg.Signature, m.cfg.VersionMajor, m.cfg.VersionMinor))
		accepted = true
	case protocol.MsgWriteMemory:
		accepted = m.handleWriteMemory(args)
	case protocol.MsgWriteData:
		accepted = m.handleWriteData(args)
	case protocol.MsgReadMemory:
		accepted = m.handleReadMemory(args)
	default:
		// A Read-Data acknowledgement outside a stream
		return
	}

	if accepted && m.halted == nil {
		m.settle()
	}
}

func (m *Machine) contact() {
	m.contacted = true
	m.lastActivity = m.ticks.Load()
	m.setMode(ModeCommunicating)
}

func (m *Machine) handleReset(args []byte) bool {
	runApp, err := protocol.ParseReset(args)
	if err != nil {
		return false
	}
	m.contact()
	if m.transmit(mustStatus(m.codec, protocol.MsgReset, true)) != nil {
		return true
	}

	flag := uint16(protocol.DirtyFlagValue)
	if runApp {
		flag = protocol.CleanFlagValue
	}
	WriteCleanFlag(m.hal.EEPROM, m.cfg.CleanFlagAddress, flag)

	m.hal.CPU.Reset()
	m.halted = ErrReset
	return true
}

// checkBounds validates a Write-Memory or Read-Memory request.
func (m *Machine) checkBounds(req protocol.MemoryRequest) bool {
	if req.Length == 0 || int(req.Length) > m.cfg.PageSize {
		return false
	}
	if req.PageAddress%uint32(m.cfg.PageSize) != 0 {
		return false
	}
	if req.PageAddress >= m.cfg.BootloaderStart {
		return false
	}
	return uint64(req.PageAddress)+uint64(req.Length) <= uint64(m.cfg.BootloaderStart)
}

// checkOrder enforces ascending page order. Page 0 restarts the sequence;
// any other page needs page 0 first and may not go below the last page.
func (m *Machine) checkOrder(addr uint32) bool {
	if addr == 0 {
		return true
	}
	return m.pageZeroSeen && addr >= m.lastPage
}

func (m *Machine) handleWriteMemory(args []byte) bool {
	req, err := protocol.ParseMemoryRequest(args)
	if err != nil {
		return false
	}
	m.contact()

	// A new request abandons any partial transfer
	m.page.release()

	if !m.checkBounds(req) || !m.checkOrder(req.PageAddress) {
		m.reply(m.codec.BuildStatus(protocol.MsgWriteMemory, false))
		return true
	}

	if req.PageAddress == 0 {
		m.pageZeroSeen = true
	}
	m.lastPage = req.PageAddress

	m.page.PageAddress = req.PageAddress
	m.page.CodeLength = req.Length
	m.page.Cursor = 0
	for i := range m.page.Data {
		m.page.Data[i] = 0xFF
	}
	m.page.armed = true

	m.reply(m.codec.BuildStatus(protocol.MsgWriteMemory, true))
	return true
}

func (m *Machine) handleWriteData(args []byte) bool {
	if len(args) == 0 {
		return false
	}
	m.contact()
	if !m.page.armed {
		m.reply(m.codec.BuildStatus(protocol.MsgWriteData, false))
		return true
	}

	n := uint16(len(args))
	if remaining := m.page.CodeLength - m.page.Cursor; n > remaining {
		n = remaining
	}
	copy(m.page.Data[m.page.Cursor:], args[:n])
	m.page.Cursor += n

	if m.page.Cursor < m.page.CodeLength {
		m.reply(m.codec.BuildStatus(protocol.MsgWriteData, true))
		return true
	}

	// The reply for the last chunk is sent once the page is programmed
	m.page.armed = false
	m.page.ReadyToWrite = true
	return true
}

// commitPage erases and programs the buffered page with interrupts
// disabled, then confirms the last chunk.
func (m *Machine) commitPage() {
	m.hal.CPU.DisableInterrupts()
	m.hal.Flash.ErasePage(m.page.PageAddress)
	for i := uint16(0); i < m.page.CodeLength; i++ {
		m.hal.Flash.ProgramByte(m.page.PageAddress+uint32(i), m.page.Data[i])
	}
	m.hal.CPU.EnableInterrupts()

	m.page.release()
	m.reply(m.codec.BuildStatus(protocol.MsgWriteData, true))
	if m.halted == nil {
		m.settle()
	}
}

func (m *Machine) handleReadMemory(args []byte) bool {
	req, err := protocol.ParseMemoryRequest(args)
	if err != nil {
		return false
	}
	m.contact()
	m.page.release()

	if !m.checkBounds(req) {
		m.reply(m.codec.BuildStatus(protocol.MsgReadMemory, false))
		return true
	}

	m.page.PageAddress = req.PageAddress
	m.page.CodeLength = req.Length
	m.page.ReadyToRead = true
	m.reply(m.codec.BuildStatus(protocol.MsgReadMemory, true))
	return true
}

// loadPage copies flash into the buffer and starts the Read-Data stream.
func (m *Machine) loadPage() {
	for i := uint16(0); i < m.page.CodeLength; i++ {
		m.page.Data[i] = m.hal.Flash.ReadFlash(m.page.PageAddress + uint32(i))
	}
	m.page.ReadyToRead = false
	m.stream = streaming{active: true}
	m.sendChunk()
}

func (m *Machine) sendChunk() {
	n := m.page.CodeLength - m.stream.cursor
	if n > protocol.MaxDataLength {
		n = protocol.MaxDataLength
	}
	chunk := m.page.Data[m.stream.cursor : m.stream.cursor+n]
	if m.transmit(mustChunk(m.codec, chunk)) != nil {
		return
	}
	m.stream.cursor += n

	if m.stream.cursor >= m.page.CodeLength {
		m.endStream()
		return
	}
	m.stream.awaitingAck = true
	m.lastActivity = m.ticks.Load()
}

func (m *Machine) ackChunk() {
	m.stream.awaitingAck = false
	m.sendChunk()
}

func (m *Machine) endStream() {
	m.stream = streaming{}
	m.page.release()
	m.settle()
}

// mustStatus and mustChunk build frames whose payloads always fit.
func mustStatus(c protocol.Codec, t protocol.MessageType, ok bool) protocol.Frame {
	f, _ := c.BuildStatus(t, ok)
	return f
}

func mustChunk(c protocol.Codec, chunk []byte) protocol.Frame {
	f, _ := c.BuildReadDataChunk(chunk)
	return f
}
