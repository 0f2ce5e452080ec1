package directive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/go-swarm/llm"
)

// ErrMissingSynthesize is the structural error for a non-empty block with no
// terminal SYNTHESIZE line.
var ErrMissingSynthesize = errors.New("directive block missing terminal SYNTHESIZE")

// ParseError reports a malformed directive block.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse directives: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse directives: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

var commandPrefixes = []string{"ANALYZE:", "CREATE:", "TO ", "SYNTHESIZE"}

// isCommandLine reports whether a cleaned line starts a new command.
func isCommandLine(line string) bool {
	for _, p := range commandPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return line == "SYNTHESIZE"
}

// cleanLine trims whitespace and the list bullets models like to prepend.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-* ")
	return strings.TrimSpace(line)
}

// Parse turns one planner response into an ordered command block.
//
// The grammar is line-oriented with case-sensitive keywords at line start:
// `ANALYZE: <text>`, `CREATE: <role> | <model_type> | <responsibility>`,
// `TO <ref>: <text>`, and a bare `SYNTHESIZE` as the last non-blank line.
// Unrecognized non-blank lines become warnings rather than errors. A
// non-empty block without SYNTHESIZE is malformed.
func Parse(raw string) (*Block, error) {
	block := &Block{}
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	if len(lines) == 1 && lines[0] == "" {
		return block, nil
	}

	sawAnalyze := false
	sawSynthesize := false

	for i := 0; i < len(lines); i++ {
		line := cleanLine(lines[i])
		if line == "" {
			continue
		}

		if sawSynthesize {
			block.Warnings = append(block.Warnings, fmt.Sprintf("line after SYNTHESIZE ignored: %q", line))
			continue
		}

		switch {
		case strings.HasPrefix(line, "ANALYZE:"):
			if sawAnalyze {
				block.Warnings = append(block.Warnings, "duplicate ANALYZE ignored")
				continue
			}
			sawAnalyze = true
			block.Commands = append(block.Commands, Analyze{
				Text: strings.TrimSpace(strings.TrimPrefix(line, "ANALYZE:")),
			})

		case strings.HasPrefix(line, "CREATE:"):
			// A bare CREATE: may list its workers on the following lines,
			// one per line, until the next command.
			decl := strings.TrimSpace(strings.TrimPrefix(line, "CREATE:"))
			decls := []string{}
			if decl != "" {
				decls = append(decls, decl)
			} else {
				for i+1 < len(lines) {
					next := cleanLine(lines[i+1])
					if next == "" {
						i++
						continue
					}
					if isCommandLine(next) {
						break
					}
					decls = append(decls, next)
					i++
				}
			}
			for _, d := range decls {
				cmd, warn := parseCreate(d)
				if warn != "" {
					block.Warnings = append(block.Warnings, warn)
					continue
				}
				block.Commands = append(block.Commands, cmd)
			}

		case strings.HasPrefix(line, "TO "):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "TO "))
			ref, msg, ok := strings.Cut(rest, ":")
			if !ok || strings.TrimSpace(ref) == "" {
				block.Warnings = append(block.Warnings, fmt.Sprintf("invalid TO command: %q", line))
				continue
			}
			block.Commands = append(block.Commands, RouteTo{
				Ref:     strings.TrimSpace(ref),
				Message: strings.TrimSpace(msg),
			})

		case line == "SYNTHESIZE" || strings.HasPrefix(line, "SYNTHESIZE:"):
			sawSynthesize = true
			block.Commands = append(block.Commands, Synthesize{})

		default:
			block.Warnings = append(block.Warnings, fmt.Sprintf("unrecognized line: %q", line))
		}
	}

	if !sawSynthesize {
		return nil, &ParseError{Reason: "non-empty block", Err: ErrMissingSynthesize}
	}

	return block, nil
}

// parseCreate splits one CREATE declaration on pipes. Three fields are
// role | model_type | responsibility; with two fields the second is a model
// type only when it names one; a single field is a bare role.
func parseCreate(decl string) (Create, string) {
	parts := strings.Split(decl, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var role, rawType, resp string
	switch len(parts) {
	case 3:
		role, rawType, resp = parts[0], parts[1], parts[2]
	case 2:
		role = parts[0]
		if _, err := llm.ParseModelType(strings.ToLower(parts[1])); err == nil {
			rawType = parts[1]
		} else {
			rawType = string(llm.ModelTypeNormal)
			resp = parts[1]
		}
	case 1:
		role = parts[0]
		rawType = string(llm.ModelTypeNormal)
	default:
		role, rawType = parts[0], parts[1]
		resp = strings.Join(parts[2:], " | ")
	}

	if role == "" {
		return Create{}, fmt.Sprintf("CREATE with empty role: %q", decl)
	}

	modelType, err := llm.ParseModelType(strings.ToLower(rawType))
	if err != nil {
		return Create{}, fmt.Sprintf("CREATE %s: %v", role, err)
	}

	return Create{Role: role, ModelType: modelType, Responsibility: resp}, ""
}
