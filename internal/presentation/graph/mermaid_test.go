package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/retrofx/internal/presentation/graph"
	"github.com/aretw0/retrofx/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name        string
		overlay     *graph.GraphOverlay
		contains    []string
		notContains []string
	}{
		{
			name: "Cycle Edges",
			contains: []string{
				"stateDiagram-v2",
				"[*] --> idle",
				"idle --> in_flight : apply",
				"in_flight --> error : latest response failed",
				"error --> idle : acknowledge / next apply",
				"in_flight --> in_flight : newer apply supersedes",
			},
			notContains: []string{
				"idle --> error",
				"classDef current",
			},
		},
		{
			name: "Current State Overlay",
			overlay: &graph.GraphOverlay{
				SessionID:    "abc-123",
				CurrentState: domain.StateError,
			},
			contains: []string{
				"class error current",
				"note right of error : session abc-123",
			},
		},
		{
			name: "Effect Label",
			overlay: &graph.GraphOverlay{
				CurrentState: domain.StateInFlight,
				Effect:       domain.EffectPixelate,
			},
			contains: []string{
				"state \"in_flight <br/> pixelate\" as in_flight",
				"class in_flight current",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() missing %q\nGot:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() unexpectedly contains %q\nGot:\n%s", unwanted, got)
				}
			}
		})
	}
}
