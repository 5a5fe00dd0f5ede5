// Package prompts loads the instruction templates used to build system
// prompts for the tutoring functions. Templates live as plain text files in
// a configurable directory so course teams can tune them without a rebuild;
// built-in defaults cover a missing directory.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	AskAgent        = "ask_agent_instruction"
	MCQBasic        = "mcq_basic"
	MCQIntermediate = "mcq_intermediate"
	MCQAdvanced     = "mcq_advanced"
)

// Vars are the placeholder substitutions applied to a template. Placeholders
// use the {NAME} form, e.g. {SUBJECT} or {QUESTION_COUNT}.
type Vars map[string]string

type Store struct {
	dir string
}

// NewStore creates a template store rooted at dir. An empty dir serves only
// the built-in defaults.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Render loads the named template and substitutes placeholders. Unknown
// placeholders are left intact so a malformed template is visible in the
// output rather than silently blanked.
func (s *Store) Render(name string, vars Vars) (string, error) {
	template, err := s.load(name)
	if err != nil {
		return "", err
	}

	replacements := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		replacements = append(replacements, "{"+key+"}", value)
	}

	return strings.NewReplacer(replacements...).Replace(template), nil
}

func (s *Store) load(name string) (string, error) {
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt template %s: %w", name, err)
		}
	}

	if template, ok := defaultTemplates[name]; ok {
		return template, nil
	}
	return "", fmt.Errorf("prompt template not found: %s", name)
}

var defaultTemplates = map[string]string{
	AskAgent: `You are a patient tutoring assistant preparing a student for {TARGET_EXAM}.
Stay within the scope of {SUBJECT}{TOPIC_CLAUSE}.
Answer with clear, exam-oriented study notes in Markdown. Use LaTeX for equations.

{CONTEXT_BLOCK}`,

	MCQBasic: mcqTemplate("basic", "Test recall of definitions and single-step reasoning."),

	MCQIntermediate: mcqTemplate("intermediate", "Test application of concepts and two-step reasoning."),

	MCQAdvanced: mcqTemplate("advanced", "Test multi-step analysis and synthesis across sub-topics."),
}

func mcqTemplate(level, difficulty string) string {
	return `Generate exactly {QUESTION_COUNT} ` + level + `-level multiple choice questions for {TARGET_EXAM}.
Subject: {SUBJECT}. Topic: {TOPIC}. Lesson: {LESSON}. Keywords: {TAGS}.
` + difficulty + `

Format every question exactly as:
Q1. <question text>
A. <option>
B. <option>
C. <option>
D. <option>
**Answer: <letter>**
**Explanation:** <one or two sentences>

Source material:
{AGENT_TEXT}

End the output with **DONE**`
}
