package chat

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Prefix marks a line as a command rather than a chat message.
const Prefix = "/"

// Command is one parsed input line. The set of implementations is closed.
type Command interface {
	command()
}

type (
	Exit          struct{}
	ListModels    struct{}
	SwitchModel   struct{ Name string }
	NewSession    struct{}
	ListSessions  struct{}
	ChangeSession struct{ ID int64 }
	RenameSession struct{ Title string }
	DeleteSession struct{ ID int64 }
	ExportSession struct{ Path string }
	Help          struct{}
	Unknown       struct{ Verb string }
	Message       struct{ Text string }
)

func (Exit) command()          {}
func (ListModels) command()    {}
func (SwitchModel) command()   {}
func (NewSession) command()    {}
func (ListSessions) command()  {}
func (ChangeSession) command() {}
func (RenameSession) command() {}
func (DeleteSession) command() {}
func (ExportSession) command() {}
func (Help) command()          {}
func (Unknown) command()       {}
func (Message) command()       {}

const HelpText = `
# AI Chat CLI

Available commands:
- /exit - Exit the application
- /list_models - Show available models
- /switch_model <model_name> - Switch to a different model
- /new_session - Create a new chat session
- /list_sessions - Show all chat sessions
- /change_session <id> - Switch to a different session
- /rename_session <new_title> - Rename the current session
- /delete_session <id> - Delete a session entirely
- /export_session <file> - Save the current session as YAML
- /help - Show this help message
`

// Parse turns a trimmed input line into a Command. Lines without the prefix
// are chat messages. Missing or malformed arguments yield ErrValidation.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, Prefix) {
		return Message{Text: line}, nil
	}

	rest := strings.TrimPrefix(line, Prefix)
	verb, arg := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		verb, arg = rest[:i], strings.TrimSpace(rest[i:])
	}

	switch verb {
	case "exit":
		return Exit{}, nil
	case "list_models":
		return ListModels{}, nil
	case "switch_model":
		if arg == "" {
			return nil, usage("switch_model <model_name>")
		}
		return SwitchModel{Name: arg}, nil
	case "new_session":
		return NewSession{}, nil
	case "list_sessions":
		return ListSessions{}, nil
	case "change_session":
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		return ChangeSession{ID: id}, nil
	case "rename_session":
		if arg == "" {
			return nil, usage("rename_session <new_title>")
		}
		return RenameSession{Title: arg}, nil
	case "delete_session":
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		return DeleteSession{ID: id}, nil
	case "export_session":
		if arg == "" {
			return nil, usage("export_session <file>")
		}
		return ExportSession{Path: arg}, nil
	case "help":
		return Help{}, nil
	default:
		return Unknown{Verb: verb}, nil
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid session ID %q", ErrValidation, arg)
	}
	return id, nil
}

func usage(synopsis string) error {
	return fmt.Errorf("%w: usage: %s%s", ErrValidation, Prefix, synopsis)
}
