package domain

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Vocabulary is the controlled list of business-category labels.
type Vocabulary struct {
	labels   []string
	index    map[string]string
	fallback string
}

type vocabularyFile struct {
	Fallback   string   `yaml:"fallback"`
	Categories []string `yaml:"categories"`
}

var (
	vocabOnce sync.Once
	vocab     *Vocabulary
	vocabErr  error
)

// Categories returns the process-wide vocabulary parsed from the embedded file.
func Categories() *Vocabulary {
	vocabOnce.Do(func() {
		vocab, vocabErr = ParseVocabulary(categoriesYAML)
	})
	if vocabErr != nil {
		panic(fmt.Sprintf("embedded categories vocabulary: %v", vocabErr))
	}
	return vocab
}

func ParseVocabulary(raw []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary yaml: %w", err)
	}

	v := &Vocabulary{
		index:    make(map[string]string, len(file.Categories)),
		fallback: strings.TrimSpace(file.Fallback),
	}
	for _, label := range file.Categories {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, dup := v.index[key]; dup {
			continue
		}
		v.index[key] = label
		v.labels = append(v.labels, label)
	}
	if len(v.labels) == 0 {
		return nil, fmt.Errorf("vocabulary has no categories")
	}
	if v.fallback == "" {
		return nil, fmt.Errorf("vocabulary has no fallback category")
	}
	if _, ok := v.index[strings.ToLower(v.fallback)]; !ok {
		return nil, fmt.Errorf("fallback %q is not a vocabulary category", v.fallback)
	}
	return v, nil
}

func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

func (v *Vocabulary) Fallback() string {
	return v.fallback
}

// Validate keeps only vocabulary labels, in first-seen order and without
// duplicates. An empty intersection yields the fallback label alone.
func (v *Vocabulary) Validate(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, raw := range candidates {
		label, ok := v.index[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	if len(out) == 0 {
		return []string{v.fallback}
	}
	return out
}
