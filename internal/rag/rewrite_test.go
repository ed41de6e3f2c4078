package rag

import (
	"strings"
	"testing"
)

func TestRewriteQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		query       string
		wantRewrite bool
		wantContain string
	}{
		{name: "vague overview", query: "tell me about alzheimers", wantRewrite: true, wantContain: "What is Alzheimer's disease?"},
		{name: "vague overview mixed case", query: "Tell me about Alzheimer's", wantRewrite: true, wantContain: "What is Alzheimer's disease?"},
		{name: "vague symptoms", query: "what are the symptoms?", wantRewrite: true, wantContain: "symptoms of Alzheimer's disease"},
		{name: "cure question", query: "is there a cure?", wantRewrite: true, wantContain: "treatment options"},
		{name: "wandering parent", query: "my mom is wandering", wantRewrite: true, wantContain: "behavioral changes"},
		{name: "home safety", query: "how do I keep the house safe", wantRewrite: true, wantContain: "safety precautions"},
		{name: "support groups", query: "support groups", wantRewrite: true, wantContain: "caregiver support services"},
		{name: "specific query untouched", query: "What dosage of donepezil is typical for moderate Alzheimer's?", wantRewrite: false},
		{name: "unrelated query untouched", query: "What is the capital of France?", wantRewrite: false},
		{name: "empty", query: "", wantRewrite: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rewritten := RewriteQuery(tt.query)
			if rewritten != tt.wantRewrite {
				t.Fatalf("RewriteQuery(%q) rewritten = %v, want %v (got %q)", tt.query, rewritten, tt.wantRewrite, got)
			}
			if tt.wantRewrite {
				if !strings.Contains(got, tt.wantContain) {
					t.Errorf("RewriteQuery(%q) = %q, want contains %q", tt.query, got, tt.wantContain)
				}
			} else if got != tt.query {
				t.Errorf("RewriteQuery(%q) = %q, want original query unchanged", tt.query, got)
			}
		})
	}
}
