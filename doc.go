// Package goswarm provides top-level documentation for the go-swarm module.
// The module is organized as multiple subpackages (e.g. `orchestrator`,
// `swarm`, `directive`, `llm`, `ratelimit`, `memory`, `observability`, and
// `server`).
//
// Importers typically depend on the subpackages directly, for example:
//
//	import (
//	  "github.com/KamdynS/go-swarm/orchestrator"
//	  "github.com/KamdynS/go-swarm/llm/openai"
//	  "github.com/KamdynS/go-swarm/swarm"
//	)
//
// The root package intentionally keeps a small surface area to avoid
// stuttering and to keep subpackages composable.
package goswarm
