package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/orchestrator"
)

func TestEndConditionToOrchestratorAnyOf(t *testing.T) {
	ec := EndCondition{Kind: "any_of", Inputs: []media.InputId{"cam1", "cam2"}}
	got := ec.ToOrchestrator()
	require.Equal(t, orchestrator.AnyOf{Inputs: []media.InputId{"cam1", "cam2"}}, got)
}

func TestEndConditionToOrchestratorAllOf(t *testing.T) {
	ec := EndCondition{Kind: "all_of", Inputs: []media.InputId{"cam1"}}
	require.Equal(t, orchestrator.AllOf{Inputs: []media.InputId{"cam1"}}, ec.ToOrchestrator())
}

func TestEndConditionToOrchestratorSingletons(t *testing.T) {
	require.Equal(t, orchestrator.AnyInput{}, EndCondition{Kind: "any_input"}.ToOrchestrator())
	require.Equal(t, orchestrator.AllInputs{}, EndCondition{Kind: "all_inputs"}.ToOrchestrator())
	require.Equal(t, orchestrator.Never{}, EndCondition{Kind: "never"}.ToOrchestrator())
}

func TestEndConditionToOrchestratorUnknownKindDefaultsToNever(t *testing.T) {
	require.Equal(t, orchestrator.Never{}, EndCondition{Kind: "garbage"}.ToOrchestrator())
}

func TestRegisterInputRequestRoundTripsFields(t *testing.T) {
	req := RegisterInputRequest{
		InputId: "cam1",
		Spec: InputSpec{
			Kind:   InputKindRTP,
			Source: "streams/cam1.sdp",
			QueueOptions: QueueOptions{
				Required: true,
			},
			Resolution: media.Resolution{Width: 1280, Height: 720},
		},
	}
	require.Equal(t, media.InputId("cam1"), req.InputId)
	require.Equal(t, InputKindRTP, req.Spec.Kind)
	require.True(t, req.Spec.QueueOptions.Required)
}

func TestRegisterOutputRequestAllowsVideoOnlyOrAudioOnly(t *testing.T) {
	videoOnly := RegisterOutputRequest{
		OutputId: "out1",
		Spec: OutputSpec{
			Protocol:    "rtp",
			Destination: "127.0.0.1:5000",
			Video: &VideoOutputSpec{
				Resolution:   media.Resolution{Width: 1920, Height: 1080},
				EndCondition: EndCondition{Kind: "any_input"},
			},
		},
	}
	require.NotNil(t, videoOnly.Spec.Video)
	require.Nil(t, videoOnly.Spec.Audio)

	audioOnly := RegisterOutputRequest{
		OutputId: "out2",
		Spec: OutputSpec{
			Protocol:    "rtp",
			Destination: "127.0.0.1:5002",
			Audio: &AudioOutputSpec{
				SampleRate:   48000,
				EndCondition: EndCondition{Kind: "all_inputs"},
			},
		},
	}
	require.Nil(t, audioOnly.Spec.Video)
	require.Equal(t, 48000, audioOnly.Spec.Audio.SampleRate)
}

func TestUpdateSceneRequestHoldsPerOutputUpdates(t *testing.T) {
	req := UpdateSceneRequest{
		Outputs: []SceneOutputUpdate{
			{OutputId: "out1", Resolution: media.Resolution{Width: 1920, Height: 1080}},
			{OutputId: "out2", Resolution: media.Resolution{Width: 1280, Height: 720}},
		},
	}
	require.Len(t, req.Outputs, 2)
	require.Equal(t, media.OutputId("out2"), req.Outputs[1].OutputId)
}
