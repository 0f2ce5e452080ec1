package swarm

import (
	"fmt"
	"sort"
	"strings"
)

// MermaidOption configures Mermaid rendering.
type MermaidOption func(*mermaidConfig)

type mermaidConfig struct {
	direction string // TD, LR, BT, RL
}

// WithDirection sets graph direction (e.g., "TD", "LR").
func WithDirection(dir string) MermaidOption {
	return func(c *mermaidConfig) {
		dir = strings.TrimSpace(strings.ToUpper(dir))
		switch dir {
		case "TD", "LR", "BT", "RL":
			c.direction = dir
		}
	}
}

// MermaidDiagram renders the network topology as a Mermaid flowchart: the
// mother at the root, workers below, and an edge for every recorded message
// exchange. Useful for front ends that visualize the active swarm.
func (n *Network) MermaidDiagram(opts ...MermaidOption) string {
	cfg := mermaidConfig{direction: "TD"}
	for _, o := range opts {
		o(&cfg)
	}

	mother, workers := n.List()

	var b strings.Builder
	fmt.Fprintf(&b, "graph %s\n", cfg.direction)

	// Compact stable ids to avoid collisions with role text.
	nodeIDs := make(map[string]string)
	idSeq := 0
	ensure := func(instID, label string) string {
		if id, ok := nodeIDs[instID]; ok {
			return id
		}
		idSeq++
		id := fmt.Sprintf("n%d", idSeq)
		nodeIDs[instID] = id
		fmt.Fprintf(&b, "  %s[%q]\n", id, label)
		return id
	}

	if mother == nil {
		return b.String()
	}
	motherID := ensure(mother.ID, mother.Role)

	for _, w := range workers {
		label := w.Role
		if w.Status == StatusErrored {
			label += " (errored)"
		}
		wid := ensure(w.ID, label)
		fmt.Fprintf(&b, "  %s --> %s\n", motherID, wid)
	}

	// Worker-to-worker connections, deduplicated and ordered for stable output.
	seen := make(map[string]struct{})
	edges := []string{}
	for _, w := range workers {
		for _, peer := range w.ConnectedTo {
			if _, ok := nodeIDs[peer]; !ok {
				continue
			}
			a, bID := nodeIDs[w.ID], nodeIDs[peer]
			if a > bID {
				a, bID = bID, a
			}
			key := a + "-" + bID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, fmt.Sprintf("  %s <--> %s\n", a, bID))
		}
	}
	sort.Strings(edges)
	for _, e := range edges {
		b.WriteString(e)
	}

	return b.String()
}
