package tui

import (
	"strings"

	"github.com/matheus3301/storechat/internal/chat"
)

// Command is a parsed prompt line.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command line without its leading ':'.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	name, args, _ := strings.Cut(input, " ")
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
}

// commandHelp lists the prompt commands.
var commandHelp = [][2]string{
	{":open <name>", "Talk to a user by name"},
	{":resend", "Retry the last message that was not sent"},
	{":leave", "Close the active conversation"},
	{":help", "Show this help"},
	{":quit", "Exit"},
}

// lastUnsent returns the id of the newest not_sent message.
func lastUnsent(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == chat.StatusNotSent {
			return msgs[i].ID, true
		}
	}
	return "", false
}
