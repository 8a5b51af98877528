package conversation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/narekokr/text-guided-audio-split/internal/conversation"
	"github.com/narekokr/text-guided-audio-split/internal/gateway"
	"github.com/narekokr/text-guided-audio-split/internal/model/chat"
)

func TestOptimisticAppendSurvivesFailure(t *testing.T) {
	log := conversation.NewLog(zap.NewNop())

	log.AppendUser("separate vocals")
	log.AppendDiagnostic("Assistant failed: backend returned 500")

	msgs := log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, "separate vocals", msgs[0].Content)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
}

func TestApplyChatResponseBindsToLastAssistant(t *testing.T) {
	log := conversation.NewLog(zap.NewNop())
	log.AppendUser("separate vocals and bass")

	log.ApplyChatResponse(&gateway.ChatResponse{
		History: []gateway.HistoryMessage{
			{Role: chat.RoleAssistant, Content: "File ready! You can now start chatting below."},
			{Role: chat.RoleUser, Content: "separate vocals and bass"},
			{Role: chat.RoleAssistant, Content: "Here are your stems"},
		},
		Stems: []gateway.StemFile{
			{Name: "vocals", FileURL: "/x"},
			{Name: "bass", FileURL: "/y"},
		},
	})

	msgs := log.Messages()
	require.Len(t, msgs, 3)

	last := msgs[len(msgs)-1]
	assert.Equal(t, chat.RoleAssistant, last.Role)
	assert.Equal(t, "Here are your stems", last.Content)
	require.Len(t, last.Artifacts, 2)
	assert.Equal(t, "vocals", last.Artifacts[0].Label)
	assert.Equal(t, "bass", last.Artifacts[1].Label)

	// Earlier messages never pick up the new artifacts.
	assert.Empty(t, msgs[0].Artifacts)
	assert.Empty(t, msgs[1].Artifacts)
}

func TestApplyChatResponseRemixBinding(t *testing.T) {
	log := conversation.NewLog(zap.NewNop())

	log.ApplyChatResponse(&gateway.ChatResponse{
		History: []gateway.HistoryMessage{
			{Role: chat.RoleUser, Content: "boost the drums"},
			{Role: chat.RoleAssistant, Content: "Here is your remix"},
		},
		Remix: &gateway.StemFile{FileURL: "/remix.wav"},
	})

	msgs := log.Messages()
	last := msgs[len(msgs)-1]
	require.Len(t, last.Artifacts, 1)
	assert.Equal(t, chat.ArtifactRemix, last.Artifacts[0].Kind)
	assert.Equal(t, "remix", last.Artifacts[0].Label)
}

func TestArtifactsWithoutAssistantAreDropped(t *testing.T) {
	log := conversation.NewLog(zap.NewNop())

	log.ApplyChatResponse(&gateway.ChatResponse{
		History: []gateway.HistoryMessage{
			{Role: chat.RoleUser, Content: "separate vocals"},
		},
		Stems: []gateway.StemFile{{Name: "vocals", FileURL: "/x"}},
	})

	for _, m := range log.Messages() {
		assert.Empty(t, m.Artifacts)
	}
}

func TestEmptyHistoryKeepsLocalLog(t *testing.T) {
	log := conversation.NewLog(zap.NewNop())
	log.AppendUser("hello")

	log.ApplyChatResponse(&gateway.ChatResponse{})

	msgs := log.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestReplaceFromHistoryReconstructsArtifacts(t *testing.T) {
	log := conversation.NewLog(zap.NewNop())
	log.AppendUser("stale local state")

	log.ReplaceFromHistory([]gateway.HistoryMessage{
		{Role: chat.RoleUser, Content: "separate vocals"},
		{
			Role:    chat.RoleAssistant,
			Content: "Here are your stems",
			Files: []gateway.FileEntry{
				{Type: "stem", Stem: "vocals", FileURL: "/v.wav"},
				{Type: "stem", Stem: "drums", FileURL: "/d.wav"},
				{Type: "remix", FileURL: "/r1.wav"},
				{Type: "remix", FileURL: "/r2.wav"}, // second remix dropped
				{Type: "uploaded", FileURL: "/orig.wav"},
			},
		},
	})

	msgs := log.Messages()
	require.Len(t, msgs, 2)

	artifacts := msgs[1].Artifacts
	require.Len(t, artifacts, 3)
	assert.Equal(t, chat.ArtifactStem, artifacts[0].Kind)
	assert.Equal(t, "vocals", artifacts[0].Label)
	assert.Equal(t, "drums", artifacts[1].Label)
	assert.Equal(t, chat.ArtifactRemix, artifacts[2].Kind)
	assert.Equal(t, "/r1.wav", artifacts[2].Locator)
}

func TestFileEntriesOnUserMessagesDropped(t *testing.T) {
	log := conversation.NewLog(zap.NewNop())

	log.ReplaceFromHistory([]gateway.HistoryMessage{
		{
			Role:    chat.RoleUser,
			Content: "separate vocals",
			Files:   []gateway.FileEntry{{Type: "stem", Stem: "vocals", FileURL: "/v.wav"}},
		},
	})

	msgs := log.Messages()
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].Artifacts)
}
