package assistant

import (
	"sort"
	"strings"
	"time"

	"coolcar/internal/domain"
)

// MessageCount splits a transcript by sender.
type MessageCount struct {
	Total int `json:"total"`
	User  int `json:"user"`
	Bot   int `json:"bot"`
}

// Insights summarizes one visitor's conversation for the chat panel.
type Insights struct {
	MessageCount        MessageCount  `json:"messageCount"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	TopTopics           []string      `json:"topTopics"`
	Duration            time.Duration `json:"conversationDuration"`
}

var insightTopics = []struct {
	name     string
	keywords []string
}{
	{"booking", []string{"book", "appointment", "schedule"}},
	{"services", []string{"repair", "service", "maintenance", "fix"}},
	{"pricing", []string{"price", "cost", "quote", "expensive"}},
	{"location", []string{"where", "location", "address", "directions"}},
	{"hours", []string{"hours", "open", "close", "time"}},
}

// Analyze computes insights over a transcript ordered oldest first.
// Response time counts only a bot message that directly follows a user one.
func Analyze(messages []domain.ChatMessage) Insights {
	var in Insights
	in.MessageCount.Total = len(messages)

	var total time.Duration
	responses := 0
	counts := make(map[string]int)
	for i, m := range messages {
		switch m.Sender {
		case domain.SenderUser:
			in.MessageCount.User++
			lower := strings.ToLower(m.Text)
			for _, t := range insightTopics {
				for _, k := range t.keywords {
					if strings.Contains(lower, k) {
						counts[t.name]++
						break
					}
				}
			}
		case domain.SenderBot:
			in.MessageCount.Bot++
			if i > 0 && messages[i-1].Sender == domain.SenderUser {
				total += m.Timestamp.Sub(messages[i-1].Timestamp)
				responses++
			}
		}
	}
	if responses > 0 {
		in.AverageResponseTime = total / time.Duration(responses)
	}

	in.TopTopics = []string{}
	for _, t := range insightTopics {
		if counts[t.name] > 0 {
			in.TopTopics = append(in.TopTopics, t.name)
		}
	}
	sort.SliceStable(in.TopTopics, func(i, j int) bool {
		return counts[in.TopTopics[i]] > counts[in.TopTopics[j]]
	})
	if len(in.TopTopics) > 3 {
		in.TopTopics = in.TopTopics[:3]
	}

	if len(messages) > 1 {
		in.Duration = messages[len(messages)-1].Timestamp.Sub(messages[0].Timestamp)
	}
	return in
}
