package simserver

import (
	"github.com/simarena/simarena/protocol"
)

// Events holds the outbound signal handlers. Unset handlers drop their
// events. All handlers are invoked from the tick thread; they must not
// block.
type Events struct {
	// GotPacket delivers one serialized camera wrapper packet.
	GotPacket func(data []byte, receiveTime int64, source string)

	// SendRealData delivers the serialized ground-truth simulator state.
	SendRealData func(data []byte)

	// SendRadioResponses delivers the batch of responses of one tick.
	SendRadioResponses func(responses []protocol.RadioResponse)

	// SendSSLSimError delivers one drained error batch.
	SendSSLSimError func(errors []*protocol.SimulatorError, source ErrorSource)

	// SendStatus delivers per-tick timing.
	SendStatus func(status *protocol.Status)
}

func (e *Events) emitGotPacket(data []byte, receiveTime int64, source string) {
	if e.GotPacket != nil {
		e.GotPacket(data, receiveTime, source)
	}
}

func (e *Events) emitRealData(data []byte) {
	if e.SendRealData != nil {
		e.SendRealData(data)
	}
}

func (e *Events) emitRadioResponses(responses []protocol.RadioResponse) {
	if e.SendRadioResponses != nil {
		e.SendRadioResponses(responses)
	}
}

func (e *Events) emitSimErrors(errors []*protocol.SimulatorError, source ErrorSource) {
	if e.SendSSLSimError != nil {
		e.SendSSLSimError(errors, source)
	}
}

func (e *Events) emitStatus(status *protocol.Status) {
	if e.SendStatus != nil {
		e.SendStatus(status)
	}
}
