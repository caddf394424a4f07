package engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/taskflow/internal/tasklist"
)

func TestTruncate_KeepsTail(t *testing.T) {
	s := strings.Repeat("boilerplate\n", 500) + "panic: index out of range"

	got := Truncate(s, 100)
	assert.True(t, strings.HasPrefix(got, truncationMarker))
	assert.True(t, strings.HasSuffix(got, "panic: index out of range"))
	assert.Equal(t, 100, len(got)-len(truncationMarker))
}

func TestTruncate_ShortInputUnchanged(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "", Truncate("", 100))
}

func TestTruncate_CutsOnRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 100) // two bytes each

	got := strings.TrimPrefix(Truncate(s, 51), truncationMarker)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 50, len(got))
}

func TestDefaultPrompts(t *testing.T) {
	task := tasklist.Task{Name: "Add retry to client", TargetFiles: []string{"client.go", "client_test.go"}}
	p := DefaultPrompts{Budget: 20}

	initial := p.TaskPrompt(task)
	assert.Contains(t, initial, "Add retry to client")
	assert.Contains(t, initial, "client.go, client_test.go")

	correction := p.CorrectionPrompt(task, 1, "early noise "+strings.Repeat("x", 50)+" FINAL ERROR\n")
	assert.Contains(t, correction, "Attempt 1")
	assert.Contains(t, correction, "Add retry to client")
	assert.Contains(t, correction, "FINAL ERROR")
	assert.NotContains(t, correction, "early noise")
}
