package orchestrator

import "github.com/bialy-nvr/compositor/pkg/media"

// EndCondition decides when an output's video or audio stream should
// stop: once satisfied it never un-satisfies, even if an input that
// triggered it later reconnects.
type EndCondition interface {
	isEndCondition()
}

// AnyOf ends the output once any of the named inputs disconnects.
type AnyOf struct{ Inputs []media.InputId }

func (AnyOf) isEndCondition() {}

// AllOf ends the output once every one of the named inputs has
// disconnected.
type AllOf struct{ Inputs []media.InputId }

func (AllOf) isEndCondition() {}

// AnyInput ends the output the moment any connected input disconnects,
// regardless of which one.
type AnyInput struct{}

func (AnyInput) isEndCondition() {}

// AllInputs ends the output once every input that was ever connected
// to it has disconnected.
type AllInputs struct{}

func (AllInputs) isEndCondition() {}

// Never means the output only ends when explicitly unregistered.
type Never struct{}

func (Never) isEndCondition() {}

type eosStatus int

const (
	eosNone eosStatus = iota
	eosSend
	eosAlreadySent
)

// endConditionState tracks one output's one stream kind (video or
// audio): which inputs are currently connected, whether the condition
// has fired, and whether the resulting EOS has already been emitted.
// It is a direct port of the source pipeline's
// PipelineOutputEndConditionState state machine.
type endConditionState struct {
	condition       EndCondition
	connectedInputs map[media.InputId]struct{}
	didEnd          bool
	didSendEOS      bool
}

func newEndConditionState(condition EndCondition, connected []media.InputId) *endConditionState {
	set := make(map[media.InputId]struct{}, len(connected))
	for _, id := range connected {
		set[id] = struct{}{}
	}
	return &endConditionState{condition: condition, connectedInputs: set}
}

type stateChangeKind int

const (
	changeAddInput stateChangeKind = iota
	changeRemoveInput
	changeNone
)

// onInputRegistered, onInputUnregistered, and onInputEOS mirror the
// three events the source state machine reacts to; EOS and
// unregistration both remove the input from the connected set.
func (s *endConditionState) onInputRegistered(id media.InputId) {
	s.onEvent(changeAddInput, id)
}

func (s *endConditionState) onInputUnregistered(id media.InputId) {
	s.onEvent(changeRemoveInput, id)
}

func (s *endConditionState) onInputEOS(id media.InputId) {
	s.onEvent(changeRemoveInput, id)
}

func (s *endConditionState) onEvent(kind stateChangeKind, id media.InputId) {
	if s.didEnd {
		return
	}
	switch kind {
	case changeAddInput:
		s.connectedInputs[id] = struct{}{}
	case changeRemoveInput:
		delete(s.connectedInputs, id)
	}

	switch cond := s.condition.(type) {
	case AnyOf:
		for _, in := range cond.Inputs {
			if _, ok := s.connectedInputs[in]; !ok {
				s.didEnd = true
				break
			}
		}
	case AllOf:
		allGone := true
		for _, in := range cond.Inputs {
			if _, ok := s.connectedInputs[in]; ok {
				allGone = false
				break
			}
		}
		s.didEnd = allGone
	case AnyInput:
		s.didEnd = kind == changeRemoveInput
	case AllInputs:
		s.didEnd = len(s.connectedInputs) == 0
	case Never:
		s.didEnd = false
	}
}

// eosStatusFor reports the EOS action the caller should take this
// tick, and latches didSendEOS exactly once (testable property 4: EOS
// is emitted exactly once). It re-runs the condition against the
// current connected-input snapshot on every call (mirroring the source
// state machine's eos_status, which re-evaluates on every poll) so a
// condition whose truth doesn't depend on a fresh lifecycle event —
// e.g. AllInputs with no inputs ever connected, or AnyOf/AllOf naming
// an input that hasn't connected yet — ends without waiting for one.
func (s *endConditionState) eosStatusFor() eosStatus {
	s.onEvent(changeNone, "")
	if !s.didEnd {
		return eosNone
	}
	if s.didSendEOS {
		return eosAlreadySent
	}
	s.didSendEOS = true
	return eosSend
}
