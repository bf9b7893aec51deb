package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/areadera/internal/jobs"
)

type failingQA struct{}

func (failingQA) GenerateQA(context.Context, string, string) (*QA, error) {
	return nil, errors.New("llm quota exceeded")
}

func TestGenerateQATask(t *testing.T) {
	content := strings.Repeat("a", 150)
	outcome := NewGenerateQATask(Dependencies{}).Execute(context.Background(), mustArgs(t, "section", content), nil)
	require.True(t, outcome.OK())

	qa, ok := outcome.Result.(QA)
	require.True(t, ok)
	assert.NotEmpty(t, qa.Question)
	assert.NotEmpty(t, qa.CorrectAnswer)
	assert.Len(t, qa.WrongAnswers, 3)
	assert.Equal(t, content[:100], qa.LookupText)
}

func TestGenerateQATaskLookupTextComesFromSubPoint(t *testing.T) {
	section := strings.Repeat("x", 200)
	subPoint := strings.Repeat("y", 200)
	outcome := NewGenerateQATask(Dependencies{}).Execute(context.Background(), mustArgs(t, section, subPoint), nil)
	require.True(t, outcome.OK())

	qa, ok := outcome.Result.(QA)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("y", 100), qa.LookupText)
	assert.NotContains(t, qa.LookupText, "x")
}

func TestLookupText(t *testing.T) {
	assert.Equal(t, "short", LookupText("short"))
	assert.Equal(t, "", LookupText(""))

	multibyte := strings.Repeat("あ", 120)
	got := LookupText(multibyte)
	assert.Equal(t, 100, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestGenerateQATaskFailures(t *testing.T) {
	outcome := NewGenerateQATask(Dependencies{QA: failingQA{}}).Execute(context.Background(), mustArgs(t, "s", "p"), nil)
	assert.EqualError(t, outcome.Err, "llm quota exceeded")

	var argErr *jobs.ArgumentError
	outcome = NewGenerateQATask(Dependencies{}).Execute(context.Background(), mustArgs(t, "only one"), nil)
	assert.ErrorAs(t, outcome.Err, &argErr)
}
