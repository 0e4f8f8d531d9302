package simserver

import (
	"github.com/simarena/simarena/protocol"
)

type ErrorSource int

const (
	ErrorSourceBlue ErrorSource = iota
	ErrorSourceYellow
	ErrorSourceConfig
)

func (s ErrorSource) String() string {
	switch s {
	case ErrorSourceBlue:
		return "BLUE"
	case ErrorSourceYellow:
		return "YELLOW"
	case ErrorSourceConfig:
		return "CONFIG"
	}
	return "UNKNOWN"
}

// ErrorAggregator collects in-band error reports per source and hands them
// out in batches once per tick. Identical reports arriving between two
// drains collapse into one.
type ErrorAggregator struct {
	aggregates map[ErrorSource][]*protocol.SimulatorError
	seen       map[ErrorSource]map[string]bool
}

func NewErrorAggregator() *ErrorAggregator {
	return &ErrorAggregator{
		aggregates: make(map[ErrorSource][]*protocol.SimulatorError),
		seen:       make(map[ErrorSource]map[string]bool),
	}
}

func (a *ErrorAggregator) Aggregate(err *protocol.SimulatorError, source ErrorSource) {
	key := err.Code + "\x00" + err.Message
	if a.seen[source] == nil {
		a.seen[source] = make(map[string]bool)
	}
	if a.seen[source][key] {
		return
	}
	a.seen[source][key] = true
	a.aggregates[source] = append(a.aggregates[source], err)
}

// GetAggregates returns and clears the batch for one source.
func (a *ErrorAggregator) GetAggregates(source ErrorSource) []*protocol.SimulatorError {
	batch := a.aggregates[source]
	delete(a.aggregates, source)
	delete(a.seen, source)
	return batch
}
