package call

import (
	"context"

	"github.com/looplab/fsm"
)

// State is the call lifecycle state
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateEnded      State = "ended"
)

const (
	eventDial        = "dial"
	eventRing        = "ring"
	eventEstablished = "established"
	eventEnd         = "end"
	eventReset       = "reset"
)

func newMachine(onTransition func(from, to string)) *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventDial, Src: []string{string(StateIdle)}, Dst: string(StateConnecting)},
			{Name: eventRing, Src: []string{string(StateIdle)}, Dst: string(StateConnecting)},
			{Name: eventEstablished, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventEnd, Src: []string{string(StateConnecting), string(StateConnected)}, Dst: string(StateEnded)},
			{Name: eventReset, Src: []string{string(StateEnded)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onTransition(e.Src, e.Dst)
			},
		},
	)
}
