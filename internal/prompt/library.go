package prompt

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Use-case names in prompts.yaml.
const (
	ExtractRemarks = "extract_remarks"
	SpeechTemplate = "speech_template"
	CustomSpeech   = "custom_speech"
)

const (
	// NoRemarksSentinel is what the model is told to answer when the speaker
	// has no prepared remarks in the transcript.
	NoRemarksSentinel = "NO_PREPARED_REMARKS_FOUND"
	// PassageDelimiter separates distinct extracted passages, alone on its line.
	PassageDelimiter = "---"
)

//go:embed prompts.yaml
var builtinPrompts []byte

var required = []string{ExtractRemarks, SpeechTemplate, CustomSpeech}

// Library is a read-only set of prompt templates keyed by use case.
type Library struct {
	templates map[string]Template
}

// Parse loads a library from YAML. All three use cases must be present.
func Parse(data []byte) (*Library, error) {
	var raw map[string]Template
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt library: %w", err)
	}

	lib := &Library{templates: make(map[string]Template, len(raw))}
	for name, t := range raw {
		if t.User == "" {
			return nil, fmt.Errorf("prompt %s: user template is empty", name)
		}
		t.Name = name
		lib.templates[name] = t
	}
	for _, name := range required {
		if _, ok := lib.templates[name]; !ok {
			return nil, fmt.Errorf("prompt library is missing %q", name)
		}
	}
	return lib, nil
}

// Builtin returns the library compiled into the binary.
func Builtin() *Library {
	lib, err := Parse(builtinPrompts)
	if err != nil {
		panic(err)
	}
	return lib
}

func (l *Library) Get(name string) (Template, error) {
	t, ok := l.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("prompt %q not found", name)
	}
	return t, nil
}

// Names returns the use cases in the library, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
