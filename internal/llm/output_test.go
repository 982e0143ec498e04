package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fabled/internal/config"
)

func TestParseOutput_Text(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain text",
			raw:  "The moral is patience.\n",
			want: "The moral is patience.",
		},
		{
			name: "ansi escapes stripped",
			raw:  "\x1b[32mThe\x1b[0m moral is patience.\x1b[1m\x1b[0m\n",
			want: "The moral is patience.",
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "\n\n  answer here  \n",
			want: "answer here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOutput(tt.raw, config.OutputText)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutput_JSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "result field",
			raw:  `{"result": "The fox learned humility.", "cost_usd": 0.01}`,
			want: "The fox learned humility.",
		},
		{
			name: "response field",
			raw:  `{"response": "Slow and steady."}`,
			want: "Slow and steady.",
		},
		{
			name: "answer field",
			raw:  `{"answer": "Look before you leap."}`,
			want: "Look before you leap.",
		},
		{
			name: "json surrounded by log noise",
			raw:  "loading session...\n{\"result\": \"done thinking\"}\n",
			want: "done thinking",
		},
		{
			name: "invalid json falls back to raw text",
			raw:  "just a plain answer",
			want: "just a plain answer",
		},
		{
			name: "json without known field falls back to raw text",
			raw:  `{"status": "ok"}`,
			want: `{"status": "ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOutput(tt.raw, config.OutputJSON)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutput_Empty(t *testing.T) {
	for _, raw := range []string{"", "   \n\t", "\x1b[0m\x1b[1m"} {
		_, err := parseOutput(raw, config.OutputText)
		assert.ErrorIs(t, err, ErrEmptyOutput)
	}
}

func TestExpandArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		prompt    string
		model     string
		promptVia string
		want      []string
	}{
		{
			name:   "placeholders substituted",
			args:   []string{"-p", "{prompt}", "--model", "{model}"},
			prompt: "why did the fox give up",
			model:  "sonnet",
			want:   []string{"-p", "why did the fox give up", "--model", "sonnet"},
		},
		{
			name:   "empty model drops flag and value",
			args:   []string{"-p", "{prompt}", "--model", "{model}"},
			prompt: "question",
			model:  "",
			want:   []string{"-p", "question"},
		},
		{
			name:   "no prompt placeholder appends prompt",
			args:   []string{"exec", "--json"},
			prompt: "question",
			model:  "",
			want:   []string{"exec", "--json", "question"},
		},
		{
			name:      "stdin delivery never appends prompt",
			args:      []string{"--json"},
			prompt:    "question",
			promptVia: config.PromptViaStdin,
			want:      []string{"--json"},
		},
		{
			name:   "model embedded in flag value",
			args:   []string{"--model={model}", "{prompt}"},
			prompt: "q",
			model:  "llama3.2:latest",
			want:   []string{"--model=llama3.2:latest", "q"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandArgs(tt.args, tt.prompt, tt.model, tt.promptVia)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "warning: slow model", firstLine("\n  warning: slow model\ndetails follow"))
	assert.Equal(t, "", firstLine("  \n \n"))
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{limit: 5}

	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Write past the limit still reports full consumption so the
	// producer never blocks on a short write.
	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", b.String())

	n, err = b.Write([]byte("xyz"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abcde", b.String())
}
