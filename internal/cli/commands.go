package cli

import (
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
)

// Command describes one slash command of the interactive client.
type Command struct {
	Name        string
	Usage       string
	Description string
}

var commands = []Command{
	{Name: "/search", Usage: "/search <query> [n]", Description: "Search the web through the MCP server"},
	{Name: "/chat", Usage: "/chat <message>", Description: "Chat with search-augmented context"},
	{Name: "/select", Usage: "/select <query>", Description: "Let the model pick the sites it would read"},
	{Name: "/research", Usage: "/research <query>", Description: "Search, read the best sites and summarize"},
	{Name: "/tools", Usage: "/tools", Description: "List tools exposed by the server"},
	{Name: "/stats", Usage: "/stats", Description: "Show traffic log statistics"},
	{Name: "/clear-logs", Usage: "/clear-logs", Description: "Clear the traffic logs"},
	{Name: "/health", Usage: "/health", Description: "Check server health"},
	{Name: "/history", Usage: "/history", Description: "Show conversation history"},
	{Name: "/clear", Usage: "/clear", Description: "Clear conversation history"},
	{Name: "/help", Usage: "/help", Description: "Show this help message"},
	{Name: "/exit", Usage: "/exit", Description: "Exit program"},
}

var aliases = map[string]string{
	"/quit": "/exit",
	"/q":    "/exit",
}

// Input is a parsed line. An empty Command means plain chat text.
type Input struct {
	Command string
	Args    string
	// Limit is the trailing result count of /search, zero when absent
	Limit int
}

// IsChat reports whether the line should go to the chat model.
func (in Input) IsChat() bool {
	return in.Command == "" || in.Command == "/chat"
}

// ParseCommand splits a line into command and arguments.
func ParseCommand(line string) Input {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Input{Args: line}
	}

	name, rest, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	in := Input{Command: name, Args: strings.TrimSpace(rest)}

	if name == "/search" {
		fields := strings.Fields(in.Args)
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
				in.Limit = n
				in.Args = strings.Join(fields[:len(fields)-1], " ")
			}
		}
	}
	return in
}

func lookup(name string) (Command, bool) {
	for _, c := range commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// suggestions returns the completions for the word before the cursor.
func suggestions(text string) []prompt.Suggest {
	if !strings.HasPrefix(text, "/") || strings.Contains(text, " ") {
		return nil
	}
	s := make([]prompt.Suggest, 0, len(commands))
	for _, c := range commands {
		s = append(s, prompt.Suggest{Text: c.Name, Description: c.Description})
	}
	return prompt.FilterHasPrefix(s, text, true)
}

func completer(d prompt.Document) []prompt.Suggest {
	return suggestions(d.TextBeforeCursor())
}
