package services

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// CommandKind identifies a control command typed as a direct message.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdReset
	CmdStats
	CmdQuery
)

// Command is a parsed control command.
type Command struct {
	Kind CommandKind
	// N is the requested listing size for CmdQuery, already clamped.
	N int
}

// Privileged reports whether only allow-listed users may run the command.
func (c Command) Privileged() bool { return c.Kind == CmdStats || c.Kind == CmdQuery }

// ParseCommand recognizes "clear"/"reset", "stats", and "query [N]"
// (case-insensitive, whole message). Anything else, including "query" with a
// non-numeric argument, is an ordinary message.
func ParseCommand(text string) Command {
	fields := strings.Fields(cases.Fold().String(text))
	if len(fields) == 0 || len(fields) > 2 {
		return Command{}
	}
	switch fields[0] {
	case "clear", "reset":
		if len(fields) == 1 {
			return Command{Kind: CmdReset}
		}
	case "stats":
		if len(fields) == 1 {
			return Command{Kind: CmdStats}
		}
	case "query":
		if len(fields) == 1 {
			return Command{Kind: CmdQuery, N: defaultQueryLimit}
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return Command{}
		}
		return Command{Kind: CmdQuery, N: ClampQueryLimit(n)}
	}
	return Command{}
}

func formatReset(prefix string, n int64) string {
	if n == 0 {
		return prefix + " There was no conversation history to clear."
	}
	return fmt.Sprintf("%s Cleared %d messages from our conversation. Let's start fresh!", prefix, n)
}

func formatStats(prefix string, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Usage for %s\n", prefix, s.Tenant)
	fmt.Fprintf(&b, "• Conversations: %d\n", s.TotalTurns)
	fmt.Fprintf(&b, "• Unique users: %d\n", s.DistinctUsers)
	fmt.Fprintf(&b, "• Total tokens: %d\n", s.TotalTokens)
	fmt.Fprintf(&b, "• Avg tokens per conversation: %d\n", s.AvgTokens)
	fmt.Fprintf(&b, "• Avg response length: %d chars", s.AvgResponseLength)
	if s.First != nil && s.Last != nil {
		fmt.Fprintf(&b, "\n• First: %s\n• Latest: %s",
			s.First.UTC().Format("2006-01-02 15:04"), s.Last.UTC().Format("2006-01-02 15:04"))
	}
	return b.String()
}

func formatQueries(prefix string, qs []Query) string {
	if len(qs) == 0 {
		return prefix + " No queries yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Last %d queries:", prefix, len(qs))
	for i, q := range qs {
		fmt.Fprintf(&b, "\n%d. [%s] %s: %s", i+1, q.At.UTC().Format("2006-01-02 15:04"), q.UserName, q.Message)
	}
	return b.String()
}
