package assistant

import (
	"context"
	"fmt"
	"strings"

	"coolcar/internal/booking"
)

// Command is a slash command typed into the chat.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses "/name args..." and returns nil for ordinary text.
func ParseCommand(text string) *Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	parts := strings.Fields(text)
	return &Command{Name: strings.ToLower(strings.TrimPrefix(parts[0], "/")), Args: parts[1:]}
}

// command runs a known command. Unknown commands report false and are
// answered like any other message.
func (a *Assistant) command(ctx context.Context, s *Session, cmd *Command) (string, bool) {
	switch cmd.Name {
	case "help":
		return helpText, true
	case "book":
		if s.booking {
			f, ok := s.draft.NextRequiredField()
			if !ok {
				return readyPrompt, true
			}
			return "We're already booking. " + booking.FieldPrompt(f), true
		}
		return a.startBooking(s, ""), true
	case "cancel":
		if !s.booking {
			return "There's no booking in progress.", true
		}
		return a.continueBooking(ctx, s, "cancel"), true
	case "progress":
		if !s.booking {
			return "There's no booking in progress. Type /book to start one.", true
		}
		p := s.draft.Progress()
		return fmt.Sprintf("Booking progress: %d of %d details collected.", p.Filled, p.Total), true
	case "slots":
		date := a.now().Format(booking.DateLayout)
		if len(cmd.Args) > 0 {
			d, err := booking.ParseDate(strings.Join(cmd.Args, " "), a.now())
			if err != nil {
				return "I couldn't read that date.", true
			}
			date = d
		}
		return formatSlots(date, a.book), true
	case "insights":
		in := Analyze(s.messages)
		return fmt.Sprintf("Messages: %d (you %d, me %d). Topics: %s.",
			in.MessageCount.Total, in.MessageCount.User, in.MessageCount.Bot, topicsOrNone(in.TopTopics)), true
	case "reset", "new":
		s.draft.Reset()
		s.booking = false
		s.messages = nil
		return "Conversation cleared. How can I help with your vehicle?", true
	}
	return "", false
}

const helpText = `Commands:
/book      start a service booking
/cancel    cancel the booking in progress
/progress  show booking progress
/slots     list free times (e.g. /slots tomorrow)
/insights  summarize this conversation
/reset     start over`

func formatSlots(date string, book *booking.Book) string {
	if book == nil {
		return "Online booking is not available right now."
	}
	var free []string
	for _, s := range book.AvailableSlots(date) {
		if s.IsAvailable {
			free = append(free, s.Time)
		}
	}
	if len(free) == 0 {
		return fmt.Sprintf("No free times on %s.", date)
	}
	return fmt.Sprintf("Free times on %s: %s", date, strings.Join(free, ", "))
}

func topicsOrNone(t []string) string {
	if len(t) == 0 {
		return "none yet"
	}
	return strings.Join(t, ", ")
}
