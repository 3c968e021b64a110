package model

import (
	"testing"
)

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	type plan struct {
		Continue bool   `json:"continue"`
		Reason   string `json:"reason,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  plan
	}{
		{
			name:  "valid json object",
			input: `{"continue":true}`,
			want:  plan{Continue: true},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{continue: true, reason: 'more to do'}`,
			want:  plan{Continue: true, Reason: "more to do"},
		},
		{
			name:  "trailing comma",
			input: `{"continue":true,}`,
			want:  plan{Continue: true},
		},
		{
			name:  "missing endbracket",
			input: `{"continue":true`,
			want:  plan{Continue: true},
		},
		{
			name:  "stringified invalid json object",
			input: `"{continue: true}"`,
			want:  plan{Continue: true},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"continue\": true\n}\n",
			want:  plan{Continue: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got plan
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got.Continue != tc.want.Continue || got.Reason != tc.want.Reason {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_ArrayVariants(t *testing.T) {
	type segment struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	}

	input := `[{type:'text',text:'hi'},{type:'artifact',}]`
	var got []segment
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Type != "text" || got[1].Type != "artifact" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want two segments", got)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	type segment struct {
		Type string `json:"type"`
	}

	var got segment
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}
