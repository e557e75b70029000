package gemini

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
)

func TestBuildRequest_MapsRolesInOrder(t *testing.T) {
	history := []domain.Message{
		domain.AssistantMessage("Hello! I'm Prayu"),
		domain.UserMessage("What is Go?"),
		domain.AssistantMessage("A language."),
		domain.UserMessage("Who made it?"),
	}

	req, err := BuildRequest(history, "be nice")
	require.NoError(t, err)

	want := []Content{
		{Role: "model", Parts: []Part{{Text: "Hello! I'm Prayu"}}},
		{Role: "user", Parts: []Part{{Text: "What is Go?"}}},
		{Role: "model", Parts: []Part{{Text: "A language."}}},
		{Role: "user", Parts: []Part{{Text: "Who made it?"}}},
	}
	if diff := cmp.Diff(want, req.Contents); diff != "" {
		t.Errorf("contents mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRequest_WireShape(t *testing.T) {
	req, err := BuildRequest([]domain.Message{domain.UserMessage("hi")}, "sys")
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	const want = `{"contents":[{"role":"user","parts":[{"text":"hi"}]}],` +
		`"systemInstruction":{"parts":[{"text":"sys"}]},` +
		`"tools":[{"google_search":{}}]}`
	require.JSONEq(t, want, string(data))
}

func TestBuildRequest_EmptyHistory(t *testing.T) {
	req, err := BuildRequest(nil, "")
	require.NoError(t, err)
	require.NotNil(t, req.Contents)
	require.Empty(t, req.Contents)
	require.Nil(t, req.SystemInstruction)
}

func TestBuildRequest_RejectsUnknownRole(t *testing.T) {
	_, err := BuildRequest([]domain.Message{{Sender: domain.Role(9), Text: "?"}}, "")
	require.Error(t, err)
}

func TestWireRole(t *testing.T) {
	role, err := WireRole(domain.RoleUser)
	require.NoError(t, err)
	require.Equal(t, "user", role)

	role, err = WireRole(domain.RoleAssistant)
	require.NoError(t, err)
	require.Equal(t, "model", role)
}
