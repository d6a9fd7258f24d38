package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/media"
)

func TestAnyOfEndsWhenOneNamedInputDisconnects(t *testing.T) {
	s := newEndConditionState(AnyOf{Inputs: []media.InputId{"a", "b"}}, []media.InputId{"a", "b"})
	require.Equal(t, eosNone, s.eosStatusFor())

	s.onInputUnregistered("a")
	require.Equal(t, eosSend, s.eosStatusFor())
	require.Equal(t, eosAlreadySent, s.eosStatusFor())
}

func TestAllOfRequiresEveryNamedInputGone(t *testing.T) {
	s := newEndConditionState(AllOf{Inputs: []media.InputId{"a", "b"}}, []media.InputId{"a", "b"})
	s.onInputUnregistered("a")
	require.Equal(t, eosNone, s.eosStatusFor())
	s.onInputUnregistered("b")
	require.Equal(t, eosSend, s.eosStatusFor())
}

func TestAnyInputEndsOnFirstDisconnectRegardlessOfWhich(t *testing.T) {
	s := newEndConditionState(AnyInput{}, []media.InputId{"a", "b", "c"})
	s.onInputUnregistered("c")
	require.Equal(t, eosSend, s.eosStatusFor())
}

func TestAllInputsEndsOnlyWhenConnectedSetEmpties(t *testing.T) {
	s := newEndConditionState(AllInputs{}, []media.InputId{"a", "b"})
	s.onInputUnregistered("a")
	require.Equal(t, eosNone, s.eosStatusFor())
	s.onInputUnregistered("b")
	require.Equal(t, eosSend, s.eosStatusFor())
}

func TestNeverNeverEnds(t *testing.T) {
	s := newEndConditionState(Never{}, []media.InputId{"a"})
	s.onInputUnregistered("a")
	require.Equal(t, eosNone, s.eosStatusFor())
}

func TestAllInputsEndsImmediatelyWhenRegisteredWithNoInputsConnected(t *testing.T) {
	s := newEndConditionState(AllInputs{}, nil)
	require.Equal(t, eosSend, s.eosStatusFor())
}

func TestAnyOfEndsImmediatelyWhenNamedInputNeverConnected(t *testing.T) {
	s := newEndConditionState(AnyOf{Inputs: []media.InputId{"a"}}, nil)
	require.Equal(t, eosSend, s.eosStatusFor())
}

func TestAllOfEndsImmediatelyWhenNoNamedInputsEverConnected(t *testing.T) {
	s := newEndConditionState(AllOf{Inputs: []media.InputId{"a", "b"}}, nil)
	require.Equal(t, eosSend, s.eosStatusFor())
}

func TestEndConditionLatchesOnceTriggered(t *testing.T) {
	s := newEndConditionState(AnyInput{}, []media.InputId{"a"})
	s.onInputUnregistered("a")
	require.Equal(t, eosSend, s.eosStatusFor())
	// Reconnecting afterward must not un-end the output.
	s.onInputRegistered("a")
	require.Equal(t, eosAlreadySent, s.eosStatusFor())
}
