package command

import "strings"

// Embed colors, matching the chat platform's blue and green.
const (
	ColorBlue  = 0x3498db
	ColorGreen = 0x2ecc71
)

// Embed is a rich message block with a title, body and footer.
type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Footer      string `json:"footer,omitempty"`
	Color       int    `json:"color,omitempty"`
}

// Message is one outgoing chat message: plain text or an embed.
type Message struct {
	Text  string `json:"text,omitempty"`
	Embed *Embed `json:"embed,omitempty"`
}

// Reply is everything the bot sends back for one command, in order.
type Reply struct {
	Messages []Message `json:"messages"`
}

func textReply(text string) Reply {
	return Reply{Messages: []Message{{Text: text}}}
}

func (r *Reply) addText(text string) {
	r.Messages = append(r.Messages, Message{Text: text})
}

func (r *Reply) addEmbed(e Embed) {
	r.Messages = append(r.Messages, Message{Embed: &e})
}

// Text flattens the reply for transports that only carry plain text.
func (r Reply) Text() string {
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Embed == nil {
			parts = append(parts, m.Text)
			continue
		}
		lines := []string{"**" + m.Embed.Title + "**", m.Embed.Description}
		if m.Embed.Footer != "" {
			lines = append(lines, "_"+m.Embed.Footer+"_")
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}
