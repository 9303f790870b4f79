package domain

// SenderSystem is the reserved sender name for narrative and error messages.
const SenderSystem = "system"

// Message is one entry of the append-only transcript. Messages are never
// mutated after the fact except to attach an image to a special message
// once background generation completes.
type Message struct {
	Sender    string
	Text      string
	IsSpecial bool // narrative/event message, the image attachment target
	IsPrivate bool // visible only to the player
	Image     *ImageHandle
}

func SystemMessage(text string) Message {
	return Message{Sender: SenderSystem, Text: text}
}
