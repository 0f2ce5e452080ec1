package orchestrator

import (
	"fmt"
	"strings"

	"github.com/KamdynS/go-swarm/swarm"
)

// Prompt templates for the planning instance. The directive grammar the
// mother is asked to follow is the one the directive package parses.

const motherPromptTemplate = `User request: %s
%s
As a Scrum Master, analyze and break down this request following these EXACT steps:

1. ANALYZE: Provide clear task analysis
2. CREATE: Make specialist instances if needed (format: CREATE: role | model_type | responsibility)
   Available model types:
   - normal: Standard model for basic tasks
   - thinking: Enhanced model for complex reasoning
3. TO: Assign specific tasks to instances (format: TO instance-id: detailed task)
4. SYNTHESIZE: At the end

Current team: %s

Rules:
- Must use ANALYZE, CREATE, TO, and SYNTHESIZE commands
- Each command must be on its own line
- Keep responses focused and actionable
- Always delegate tasks using TO commands
- Specify model_type in CREATE commands
- End with SYNTHESIZE`

const followUpContextTemplate = `
Original task:
%s

This is a follow-up turn. Prefer assigning work to the existing team with TO
commands and plain natural-language task descriptions instead of declaring
new instances.
`

const correctivePromptTemplate = `Your previous response could not be parsed as commands:

%s

Respond again using ONLY the command format: one command per line, starting
with ANALYZE:, CREATE:, or TO, and ending with SYNTHESIZE on its own line.`

const workerPromptTemplate = `You are a %s. Your responsibility: %s.
%s
Task:
%s`

const synthesisPromptTemplate = `You coordinated a team of specialists on the user's request. Their outputs, in assignment order:

%s

Synthesize these into ONE cohesive, user-facing answer. Do not mention the
team, roles, instances, or this process. If an output is marked as failed,
work around the gap without drawing attention to it.`

// failureMarker is the explicit stand-in for a worker that produced nothing.
const failureMarker = "[instance failed to respond]"

func buildMotherPrompt(userInput string, team []swarm.Instance, firstTask string) string {
	var context string
	if firstTask != "" {
		context = fmt.Sprintf(followUpContextTemplate, firstTask)
	}

	roster := make([]string, 0, len(team))
	for _, inst := range team {
		roster = append(roster, fmt.Sprintf("%s: %s", inst.ID, inst.Role))
	}
	teamList := "(none yet)"
	if len(roster) > 0 {
		teamList = strings.Join(roster, ", ")
	}

	return fmt.Sprintf(motherPromptTemplate, userInput, context, teamList)
}

func buildCorrectivePrompt(rawResponse string) string {
	return fmt.Sprintf(correctivePromptTemplate, rawResponse)
}

func buildWorkerPrompt(inst swarm.Instance, message string) string {
	responsibility := inst.Responsibility
	if responsibility == "" {
		responsibility = inst.Role
	}

	var context string
	if len(inst.OutputHistory) > 0 {
		context = fmt.Sprintf("\nYour previous outputs:\n%s\n", strings.Join(inst.OutputHistory, "\n"))
	}

	return fmt.Sprintf(workerPromptTemplate, inst.Role, responsibility, context, message)
}

func buildSynthesisPrompt(outputs []RoleOutput) string {
	var b strings.Builder
	for _, out := range outputs {
		if out.Err != nil {
			fmt.Fprintf(&b, "%s: %s\n", out.Role, failureMarker)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", out.Role, out.Content)
	}
	return fmt.Sprintf(synthesisPromptTemplate, strings.TrimRight(b.String(), "\n"))
}
