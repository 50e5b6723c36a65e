package freeplay

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

// MessageKindHistory marks a template slot where the caller splices in prior
// conversation turns; the renderer emits nothing for it.
const MessageKindHistory = "history"

// Message is a single conversational turn. Role is an open vocabulary
// defined by the service, not a closed enum.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MediaSlot describes a media attachment position declared by a template
// message. It is surfaced to the caller as-is; rendering does not expand it.
type MediaSlot struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// TemplateMessage is one entry of a template's content list: either a
// history placeholder or a role+content pair whose content may hold
// {{variable}} markers.
type TemplateMessage struct {
	Kind       string      `json:"kind,omitempty"`
	Role       string      `json:"role,omitempty"`
	Content    string      `json:"content,omitempty"`
	MediaSlots []MediaSlot `json:"media_slots,omitempty"`
}

// IsHistoryPlaceholder reports whether this entry marks a history splice point.
func (m TemplateMessage) IsHistoryPlaceholder() bool {
	return m.Kind == MessageKindHistory
}

// TemplateMetadata carries the model routing information stored with a
// template version. Params is an open key/value bag defined by the service.
type TemplateMetadata struct {
	Model    string         `json:"model"`
	Provider string         `json:"provider"`
	Flavor   string         `json:"flavor_name"`
	Params   map[string]any `json:"params"`
}

// PromptTemplate is a fetched prompt template version. The library never
// caches or mutates one; it belongs to the caller for the duration of a
// render/record cycle.
type PromptTemplate struct {
	TemplateID   string            `json:"prompt_template_id"`
	VersionID    string            `json:"prompt_template_version_id"`
	Name         string            `json:"prompt_template_name"`
	Metadata     TemplateMetadata  `json:"metadata"`
	Content      []TemplateMessage `json:"content"`
	ToolSchema   json.RawMessage   `json:"tool_schema,omitempty"`
	OutputSchema json.RawMessage   `json:"output_schema,omitempty"`
}

// Render expands the template's messages against vars, preserving order.
// History placeholders are elided entirely so the caller can splice real
// conversation turns at that position. Markers with no matching variable are
// left verbatim, which keeps templates usable with partial variable sets.
func (t PromptTemplate) Render(vars map[string]string) []Message {
	messages := make([]Message, 0, len(t.Content))
	for _, tm := range t.Content {
		if tm.IsHistoryPlaceholder() {
			continue
		}
		messages = append(messages, Message{
			Role:    tm.Role,
			Content: expandMarkers(tm.Content, vars),
		})
	}
	return messages
}

func expandMarkers(content string, vars map[string]string) string {
	open := strings.LastIndex(content, "{{")
	if open < 0 {
		return content
	}
	// A trailing unclosed marker is literal text, not a variable slot.
	if !strings.Contains(content[open:], "}}") {
		return expandMarkers(content[:open], vars) + content[open:]
	}

	return fasttemplate.ExecuteFuncString(content, "{{", "}}", func(w io.Writer, tag string) (int, error) {
		if value, ok := vars[strings.TrimSpace(tag)]; ok {
			return io.WriteString(w, value)
		}
		return fmt.Fprintf(w, "{{%s}}", tag)
	})
}
