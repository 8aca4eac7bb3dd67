package chatcmder

import "github.com/papercomputeco/streamrelay/pkg/ndjson"

// streamFrame covers the text-bearing fields of the frame shapes chat
// understands: concierge frames, Ollama chat and generate frames, and OpenAI
// chat completion chunks.
type streamFrame struct {
	Text     string `json:"text"`
	Response string `json:"response"`
	Message  struct {
		Content string `json:"content"`
	} `json:"message"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// deltaText returns the reply text carried by ev. Raw chunks are printed as
// they are.
func deltaText(ev ndjson.Event) string {
	if ev.IsRaw() {
		return ev.Text
	}

	var f streamFrame
	if err := ev.Decode(&f); err != nil {
		return ""
	}

	switch {
	case f.Text != "":
		return f.Text
	case f.Message.Content != "":
		return f.Message.Content
	case f.Response != "":
		return f.Response
	case len(f.Choices) > 0:
		return f.Choices[0].Delta.Content
	}
	return ""
}
