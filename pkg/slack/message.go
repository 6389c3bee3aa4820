// Package slack builds incoming-webhook messages for reviews.
package slack

// Message is the body posted to an incoming webhook.
type Message struct {
	Username    string       `json:"username,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Channel     string       `json:"channel,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a legacy message attachment: colored bar, author line and fields.
type Attachment struct {
	Fallback   string  `json:"fallback"`
	Color      string  `json:"color,omitempty"`
	AuthorName string  `json:"author_name,omitempty"`
	AuthorIcon string  `json:"author_icon,omitempty"`
	AuthorLink string  `json:"author_link,omitempty"`
	Fields     []Field `json:"fields,omitempty"`
}

// Field is one titled value of an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// Identity is who the message appears to come from and where it goes.
type Identity struct {
	Username string
	IconURL  string
	Channel  string
}

// NewMessage wraps attachments with the sender identity.
func NewMessage(id Identity, attachments ...Attachment) Message {
	return Message{
		Username:    id.Username,
		IconURL:     id.IconURL,
		Channel:     id.Channel,
		Attachments: attachments,
	}
}
