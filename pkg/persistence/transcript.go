package persistence

// Transcript projects the message log into completion input, keeping the
// store's timestamp/id order.
func (s *Session) Transcript() []Turn {
	turns := make([]Turn, 0, len(s.Messages))
	for _, message := range s.Messages {
		turns = append(turns, Turn{Role: message.Role, Content: message.Content})
	}
	return turns
}

// DisplayTitle returns the title or "Untitled".
func DisplayTitle(title string) string {
	if title == "" {
		return "Untitled"
	}
	return title
}
