package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/retrofx/pkg/domain"
)

// GraphOverlay contains dynamic session data to visualize on the diagram.
type GraphOverlay struct {
	SessionID    string
	CurrentState domain.ProcessingState
	// Effect labels the in_flight state with what is being processed.
	Effect domain.EffectID
}

// edgeLabels names the operation behind each transition.
var edgeLabels = map[[2]domain.ProcessingState]string{
	{domain.StateIdle, domain.StateInFlight}:  "apply",
	{domain.StateInFlight, domain.StateIdle}:  "latest response applied / invalidated",
	{domain.StateInFlight, domain.StateError}: "latest response failed",
	{domain.StateError, domain.StateIdle}:     "acknowledge / next apply",
}

// GenerateMermaid produces a Mermaid state diagram of the processing cycle.
// Newer submissions while in_flight are drawn as a self loop.
// It applies an overlay style to the current state if provided.
func GenerateMermaid(overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    [*] --> %s\n", sanitizeMermaidID(string(domain.StateIdle)))

	for _, from := range domain.States() {
		safeFrom := sanitizeMermaidID(string(from))
		label := string(from)
		if from == domain.StateInFlight && overlay != nil && overlay.Effect != "" {
			label = fmt.Sprintf("%s <br/> %s", from, overlay.Effect)
		}
		fmt.Fprintf(&sb, "    state \"%s\" as %s\n", label, safeFrom)

		for _, to := range domain.NextStates(from) {
			edge := fmt.Sprintf("    %s --> %s", safeFrom, sanitizeMermaidID(string(to)))
			if l, ok := edgeLabels[[2]domain.ProcessingState{from, to}]; ok {
				edge += " : " + l
			}
			sb.WriteString(edge + "\n")
		}
	}
	fmt.Fprintf(&sb, "    %s --> %s : newer apply supersedes\n",
		sanitizeMermaidID(string(domain.StateInFlight)), sanitizeMermaidID(string(domain.StateInFlight)))

	if overlay != nil && overlay.CurrentState != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")
		fmt.Fprintf(&sb, "    class %s current\n", sanitizeMermaidID(string(overlay.CurrentState)))
		if overlay.SessionID != "" {
			fmt.Fprintf(&sb, "    note right of %s : session %s\n",
				sanitizeMermaidID(string(overlay.CurrentState)), overlay.SessionID)
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
