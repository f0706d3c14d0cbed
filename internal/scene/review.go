package scene

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// reviewDocument is the YAML layout handed to a human reviewer.
type reviewDocument struct {
	Project int64  `yaml:"project,omitempty"`
	Topic   string `yaml:"topic,omitempty"`
	Script  Script `yaml:"script"`
}

// MarshalReview renders script as an editable YAML document.
func MarshalReview(projectID int64, topic string, script Script) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(reviewDocument{Project: projectID, Topic: topic, Script: script}); err != nil {
		return nil, fmt.Errorf("encode review document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode review document: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalReview parses an edited review document and validates the
// script it carries. Speaker roles are normalized to lower case.
func UnmarshalReview(data []byte) (Script, error) {
	var doc reviewDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Script{}, fmt.Errorf("decode review document: %w", err)
	}
	for i := range doc.Script.Lines {
		if role, ok := ParseRole(string(doc.Script.Lines[i].Role)); ok {
			doc.Script.Lines[i].Role = role
		}
	}
	if err := doc.Script.Validate(); err != nil {
		return Script{}, err
	}
	return doc.Script, nil
}
