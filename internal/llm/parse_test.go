package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"subjects":[]}`,
			want:  `{"subjects":[]}`,
		},
		{
			name:  "fenced json",
			input: "```json\n{\"beliefs\":[]}\n```",
			want:  `{"beliefs":[]}`,
		},
		{
			name:  "fenced without language tag",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "wrapped in prose",
			input: `Here is what I found: {"subjects":[{"id":"s1"}]} — hope that helps!`,
			want:  `{"subjects":[{"id":"s1"}]}`,
		},
		{
			name:  "nested objects balanced",
			input: `{"a":{"b":{"c":1}}} trailing {"d":2}`,
			want:  `{"a":{"b":{"c":1}}}`,
		},
		{
			name:  "braces inside strings ignored",
			input: `{"statement":"I like {curly} braces"}`,
			want:  `{"statement":"I like {curly} braces"}`,
		},
		{
			name:  "escaped quotes inside strings",
			input: `{"statement":"she said \"hi {there}\""}`,
			want:  `{"statement":"she said \"hi {there}\""}`,
		},
		{
			name:    "no object at all",
			input:   "I could not find anything worth extracting.",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			input:   `{"subjects":[`,
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstJSONObject(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedOutput) {
					t.Fatalf("expected ErrMalformedOutput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FirstJSONObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("recovered span is not valid JSON: %q", got)
			}
		})
	}
}
