// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package text

import (
	"strings"
)

// ReplacementRule swaps a placeholder token for a value
type ReplacementRule struct {
	FromText string
	ToText   string
}

// ReplacementResult describes the outcome of applying a set of rules
type ReplacementResult struct {
	OriginalContent  []byte
	ModifiedContent  []byte
	ReplacementCount int
	WasModified      bool
	// Unmatched lists the FromText of every rule that found nothing to replace
	Unmatched []string
}

// SimpleTextReplacer replaces only the first occurrence of each rule's token
type SimpleTextReplacer struct{}

// NewSimpleTextReplacer creates a new SimpleTextReplacer
func NewSimpleTextReplacer() *SimpleTextReplacer {
	return &SimpleTextReplacer{}
}

// ReplaceString applies each rule in order to s. Later occurrences of a token are left alone.
func (r *SimpleTextReplacer) ReplaceString(s string, rules []ReplacementRule) *ReplacementResult {
	result := &ReplacementResult{
		OriginalContent: []byte(s),
	}

	current := s
	for _, rule := range rules {
		if rule.FromText == "" {
			continue
		}

		if !strings.Contains(current, rule.FromText) {
			result.Unmatched = append(result.Unmatched, rule.FromText)
			continue
		}

		next := strings.Replace(current, rule.FromText, rule.ToText, 1)
		if next != current {
			result.WasModified = true
		}
		result.ReplacementCount++
		current = next
	}

	result.ModifiedContent = []byte(current)
	return result
}

