package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_DefaultTemplates(t *testing.T) {
	store := NewStore("")

	out, err := store.Render(AskAgent, Vars{
		"TARGET_EXAM":   "CSIR Chemical Sciences Exam",
		"SUBJECT":       "Chemistry",
		"TOPIC_CLAUSE":  ", focusing on Thermodynamics",
		"CONTEXT_BLOCK": "**Student Query**: What is entropy?",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "CSIR Chemical Sciences Exam")
	assert.Contains(t, out, "Chemistry, focusing on Thermodynamics")
	assert.Contains(t, out, "**Student Query**: What is entropy?")
	assert.NotContains(t, out, "{TARGET_EXAM}")
}

func TestRender_MCQTemplateEndsWithDoneMarker(t *testing.T) {
	store := NewStore("")

	for _, name := range []string{MCQBasic, MCQIntermediate, MCQAdvanced} {
		out, err := store.Render(name, Vars{"QUESTION_COUNT": "5"})
		require.NoError(t, err)
		assert.Contains(t, out, "Generate exactly 5")
		assert.Contains(t, out, "**DONE**")
	}
}

func TestRender_FileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	custom := "Custom instructions about {SUBJECT}."
	require.NoError(t, os.WriteFile(filepath.Join(dir, AskAgent+".txt"), []byte(custom), 0600))

	store := NewStore(dir)
	out, err := store.Render(AskAgent, Vars{"SUBJECT": "Chemistry"})
	require.NoError(t, err)
	assert.Equal(t, "Custom instructions about Chemistry.", out)
}

func TestRender_MissingDirFallsBackToDefault(t *testing.T) {
	store := NewStore(t.TempDir())

	out, err := store.Render(MCQBasic, Vars{"QUESTION_COUNT": "3"})
	require.NoError(t, err)
	assert.Contains(t, out, "Generate exactly 3")
}

func TestRender_UnknownTemplate(t *testing.T) {
	store := NewStore("")
	_, err := store.Render("nonexistent", Vars{})
	assert.ErrorContains(t, err, "not found")
}

func TestRender_UnknownPlaceholdersLeftIntact(t *testing.T) {
	store := NewStore("")
	out, err := store.Render(AskAgent, Vars{})
	require.NoError(t, err)
	assert.Contains(t, out, "{TARGET_EXAM}")
}
