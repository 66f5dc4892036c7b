package domain

import "regexp"

// BotPattern is a trigger regex plus its canned responses.
type BotPattern struct {
	Name      string
	Trigger   *regexp.Regexp
	Responses []string
	FollowUp  string
	Context   ContextTag
	Urgency   Urgency
}
