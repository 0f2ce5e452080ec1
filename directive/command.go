// Package directive parses the planner's free-text protocol output into a
// closed set of structured commands. Parsing is pure: it never touches the
// network and always returns either a command block or a structural error.
package directive

import (
	"github.com/KamdynS/go-swarm/llm"
)

// Command is one parsed directive. The variant set is closed so downstream
// consumers can match exhaustively.
type Command interface {
	isCommand()
}

// Analyze carries the planner's task analysis. At most one per block.
type Analyze struct {
	Text string
}

// Create declares a new worker with a role, model type, and responsibility.
type Create struct {
	Role           string
	ModelType      llm.ModelType
	Responsibility string
}

// RouteTo addresses a message to a worker. Ref is the raw reference string;
// it resolves against the registry at execution time, not parse time.
type RouteTo struct {
	Ref     string
	Message string
}

// Synthesize terminates a block. Exactly one, as the last non-blank line.
type Synthesize struct{}

func (Analyze) isCommand()    {}
func (Create) isCommand()     {}
func (RouteTo) isCommand()    {}
func (Synthesize) isCommand() {}

// Block is the parsed form of one planner response.
type Block struct {
	Commands []Command
	// Warnings records non-fatal drift: unrecognized lines, malformed
	// references, unknown model types. The directive source is a model
	// response, so formatting drift must not abort the turn.
	Warnings []string
}
