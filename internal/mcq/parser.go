// Package mcq converts loosely formatted quiz text produced by an LLM into a
// strictly validated question set.
//
// Expected shape per question:
//
//	Q1. What is 2+2?
//	A. 3
//	B. 4
//	C. 5
//	D. 6
//	**Answer: B**
//	**Explanation:** Basic arithmetic.
//
// Malformed questions are dropped individually with a recorded reason; one
// bad block never aborts parsing of the rest.
package mcq

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// Sentinel some prompts ask the model to emit when generation is complete.
	doneMarker = "**DONE**"

	defaultExplanation = "No explanation provided."

	optionCount = 4
)

var (
	questionStartRe  = regexp.MustCompile(`(?m)^Q\d+\.`)
	questionNumberRe = regexp.MustCompile(`(?i)^Q(\d+)\.\s*`)
	separatorRe      = regexp.MustCompile(`\n---+\n`)
	questionTextRe   = regexp.MustCompile(`(?s)^(.+?)\s*\n\s*A\.`)
	optionMarkerRe   = regexp.MustCompile(`(?m)^\s*([A-D])\.\s*`)
	answerMarkerRe   = regexp.MustCompile(`\*\*Answer`)
	answerRe         = regexp.MustCompile(`(?i)\*\*Answer:\s*([A-D])\*\*`)
	explanationRe    = regexp.MustCompile(`(?s)\*\*Explanation:\*\*\s*(.+)$`)
	bulletRe         = regexp.MustCompile(`(?m)^\s*[-•]\s*`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// Question is one validated multiple-choice question. Options are ordered
// A through D; Correct is the answer letter.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation"`
}

// Rejection records why one candidate block was dropped.
type Rejection struct {
	Number int
	Reason string
}

// Set is the parse result: accepted questions in input order plus per-block
// rejection diagnostics.
type Set struct {
	Questions []Question `json:"questions"`
	Rejected  []Rejection `json:"-"`
}

// Parse never fails; a completely unparseable input yields an empty set and
// it is the caller's decision whether that is an error.
func Parse(text string) Set {
	text = strings.TrimSpace(strings.ReplaceAll(text, doneMarker, ""))

	var set Set
	starts := questionStartRe.FindAllStringIndex(text, -1)
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		part := strings.TrimSpace(text[start[0]:end])
		if part == "" {
			continue
		}

		numMatch := questionNumberRe.FindStringSubmatch(part)
		if numMatch == nil {
			continue
		}
		number, _ := strconv.Atoi(numMatch[1])

		question, err := parseBlock(questionNumberRe.ReplaceAllString(part, ""))
		if err != nil {
			set.Rejected = append(set.Rejected, Rejection{Number: number, Reason: err.Error()})
			continue
		}
		set.Questions = append(set.Questions, question)
	}
	return set
}

func parseBlock(block string) (Question, error) {
	// Trailing horizontal-rule sections are commentary the model sometimes
	// appends; only the first segment is the question body. Intentional
	// truncation, kept as-is.
	body := strings.TrimSpace(separatorRe.Split(block, 2)[0])

	text, err := extractQuestionText(body)
	if err != nil {
		return Question{}, err
	}

	options, err := extractOptions(body)
	if err != nil {
		return Question{}, err
	}

	correct, err := extractAnswer(body)
	if err != nil {
		return Question{}, err
	}

	return Question{
		Question:    text,
		Options:     options,
		Correct:     correct,
		Explanation: extractExplanation(body),
	}, nil
}

func extractQuestionText(body string) (string, error) {
	match := questionTextRe.FindStringSubmatch(body)
	if match == nil || strings.TrimSpace(match[1]) == "" {
		return "", fmt.Errorf("missing question text")
	}
	return strings.TrimSpace(match[1]), nil
}

// extractOptions slices the text between lettered markers; an option runs to
// the next marker, the answer marker, or the end of the block.
func extractOptions(body string) ([]string, error) {
	if loc := answerMarkerRe.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}

	markers := optionMarkerRe.FindAllStringIndex(body, -1)

	var options []string
	for i, marker := range markers {
		end := len(body)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		option := whitespaceRe.ReplaceAllString(strings.TrimSpace(body[marker[1]:end]), " ")
		options = append(options, option)
	}
	if len(options) < optionCount {
		return nil, fmt.Errorf("less than 4 options (%d found)", len(options))
	}
	return options[:optionCount], nil
}

func extractAnswer(body string) (string, error) {
	match := answerRe.FindStringSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("invalid or missing correct answer")
	}
	return strings.ToUpper(match[1]), nil
}

// extractExplanation degrades gracefully: the other fields are hard
// requirements but a missing explanation gets a placeholder.
func extractExplanation(body string) string {
	match := explanationRe.FindStringSubmatch(body)
	if match == nil {
		return defaultExplanation
	}

	explanation := strings.TrimSpace(match[1])
	explanation = bulletRe.ReplaceAllString(explanation, "")
	explanation = blankRunRe.ReplaceAllString(explanation, "\n\n")
	explanation = strings.TrimRight(explanation, "-")
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return defaultExplanation
	}
	return explanation
}
