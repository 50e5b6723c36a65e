package freeplay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeplay"
)

func sampleTemplate() freeplay.PromptTemplate {
	return freeplay.PromptTemplate{
		TemplateID: "t-1",
		VersionID:  "v-1",
		Name:       "support bot",
		Content: []freeplay.TemplateMessage{
			{Role: "system", Content: "You are a {{tone}} assistant for {{company}}."},
			{Role: "user", Content: "Question: {{question}}"},
		},
	}
}

func TestRenderReplacesEveryMarker(t *testing.T) {
	template := sampleTemplate()

	messages := template.Render(map[string]string{
		"tone":     "friendly",
		"company":  "Acme",
		"question": "What is your return policy?",
	})

	require.Len(t, messages, len(template.Content))
	assert.Equal(t, freeplay.Message{Role: "system", Content: "You are a friendly assistant for Acme."}, messages[0])
	assert.Equal(t, freeplay.Message{Role: "user", Content: "Question: What is your return policy?"}, messages[1])
}

func TestRenderElidesHistoryPlaceholders(t *testing.T) {
	template := freeplay.PromptTemplate{
		Content: []freeplay.TemplateMessage{
			{Role: "system", Content: "You are helpful."},
			{Kind: freeplay.MessageKindHistory},
			{Role: "user", Content: "{{question}}"},
		},
	}

	messages := template.Render(map[string]string{"question": "hi"})

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "hi", messages[1].Content)
}

func TestRenderLeavesUnknownMarkersVerbatim(t *testing.T) {
	template := sampleTemplate()

	messages := template.Render(map[string]string{"tone": "calm"})

	require.Len(t, messages, 2)
	assert.Equal(t, "You are a calm assistant for {{company}}.", messages[0].Content)
	assert.Equal(t, "Question: {{question}}", messages[1].Content)
}

func TestRenderToleratesMarkerWhitespace(t *testing.T) {
	template := freeplay.PromptTemplate{
		Content: []freeplay.TemplateMessage{
			{Role: "user", Content: "Hello {{ name }}!"},
		},
	}

	messages := template.Render(map[string]string{"name": "Ada"})
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello Ada!", messages[0].Content)
}

func TestRenderTreatsUnclosedMarkerAsText(t *testing.T) {
	template := freeplay.PromptTemplate{
		Content: []freeplay.TemplateMessage{
			{Role: "user", Content: "{{name}} wrote {{unfinished"},
		},
	}

	messages := template.Render(map[string]string{"name": "Ada"})
	require.Len(t, messages, 1)
	assert.Equal(t, "Ada wrote {{unfinished", messages[0].Content)
}

func TestRenderPreservesOrderWithEmptyVariables(t *testing.T) {
	template := freeplay.PromptTemplate{
		Content: []freeplay.TemplateMessage{
			{Role: "system", Content: "first"},
			{Role: "user", Content: "second"},
			{Role: "assistant", Content: "third"},
		},
	}

	messages := template.Render(nil)

	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
}
