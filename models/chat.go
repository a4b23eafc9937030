package models

import (
	"strings"
	"time"
)

// Speaker identifies who wrote a transcript entry
type Speaker string

const (
	SpeakerUser Speaker = "You"
	SpeakerBot  Speaker = "Bot"
)

// ChatEntry is one line of the conversation transcript
type ChatEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript is the append-only chat history of a single session.
// It is not safe for concurrent use; the owning session serializes access.
type Transcript struct {
	entries []ChatEntry
}

// AppendExchange records a user message followed by the bot's reply.
func (t *Transcript) AppendExchange(userMessage, botMessage string) {
	now := time.Now()
	t.entries = append(t.entries,
		ChatEntry{Speaker: SpeakerUser, Message: userMessage, CreatedAt: now},
		ChatEntry{Speaker: SpeakerBot, Message: botMessage, CreatedAt: now},
	)
}

// Entries returns a copy of the transcript in submission order.
func (t *Transcript) Entries() []ChatEntry {
	out := make([]ChatEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries (two per exchange).
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Reset clears the transcript. Only a session reset calls this.
func (t *Transcript) Reset() {
	t.entries = nil
}

// String renders the transcript the way the chat panel shows it.
func (t *Transcript) String() string {
	var sb strings.Builder
	for i, e := range t.entries {
		sb.WriteString(string(e.Speaker))
		sb.WriteString(": ")
		sb.WriteString(e.Message)
		sb.WriteString("\n")
		if e.Speaker == SpeakerBot && i < len(t.entries)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// ChatReply is the outcome of one chatbot call. Err is set when the call failed.
type ChatReply struct {
	Text string        `json:"text"`
	Err  *ServiceError `json:"-"`
}

// Failed reports whether the reply carries an error instead of generated text.
func (r ChatReply) Failed() bool {
	return r.Err != nil
}

// Display is the text appended to the transcript as the bot's response.
func (r ChatReply) Display() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Text
}
