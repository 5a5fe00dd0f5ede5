// Package syllabus serves the per-subject syllabus hierarchy
// (subject → topic → lesson) that scopes tutoring requests. Syllabi are
// static JSON files keyed by a main-subject identifier.
package syllabus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var subjectKeyRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type Store struct {
	dir            string
	defaultSubject string
}

func NewStore(dir, defaultSubject string) *Store {
	return &Store{dir: dir, defaultSubject: defaultSubject}
}

// Load returns the validated syllabus JSON for a subject key, falling back
// to the configured default subject when the requested file is absent.
// The key is whitelisted to a safe charset before touching the filesystem.
func (s *Store) Load(mainSubject string) ([]byte, error) {
	if mainSubject == "" {
		mainSubject = s.defaultSubject
	}
	if !subjectKeyRe.MatchString(mainSubject) {
		return nil, fmt.Errorf("invalid subject key: %q", mainSubject)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, mainSubject+".json"))
	if os.IsNotExist(err) && mainSubject != s.defaultSubject {
		data, err = os.ReadFile(filepath.Join(s.dir, s.defaultSubject+".json"))
	}
	if err != nil {
		return nil, fmt.Errorf("syllabus not found for subject %s: %w", mainSubject, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON in syllabus file for subject %s", mainSubject)
	}

	return data, nil
}
