package simserver

import (
	uuid "github.com/satori/go.uuid"
	"github.com/simarena/simarena/protocol"
)

// RadioCommand is one queued radio frame: the control payload, the time the
// host started processing it, and the addressed team.
type RadioCommand struct {
	Trace       uuid.UUID
	Control     *protocol.RobotControl
	ReceiveTime int64
	IsBlue      bool
}

// CommandQueue is a strict FIFO of radio frames. Enqueue order equals
// receive order and the command delay is constant across a drain, so
// head-only inspection is sufficient for time-ordered delivery.
type CommandQueue struct {
	items []RadioCommand
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

func (q *CommandQueue) Enqueue(control *protocol.RobotControl, receiveTime int64, isBlue bool) uuid.UUID {
	trace := uuid.NewV4()
	q.items = append(q.items, RadioCommand{
		Trace:       trace,
		Control:     control,
		ReceiveTime: receiveTime,
		IsBlue:      isBlue,
	})
	return trace
}

func (q *CommandQueue) Head() (RadioCommand, bool) {
	if len(q.items) == 0 {
		return RadioCommand{}, false
	}
	return q.items[0], true
}

func (q *CommandQueue) Dequeue() RadioCommand {
	head := q.items[0]
	q.items = q.items[1:]
	return head
}

func (q *CommandQueue) Len() int {
	return len(q.items)
}
