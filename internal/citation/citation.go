// Package citation keeps answers grounded: every page marker that leaves this
// package names a page present in the evidence the answer was drafted from.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
)

// NotFound is the canonical answer when nothing can be grounded.
const NotFound = "I could not find this information in the dataset."

// markerPattern matches "[Page 11]" and "[<any label>, Page 11]".
var markerPattern = regexp.MustCompile(`\[(?:[^\[\]]*?,\s*)?Page\s+(\d+)\]`)

var spaceBeforePunct = regexp.MustCompile(`\s+([.,;:!?])`)

// #region enforcer
// Enforcer validates and appends page citations.
type Enforcer struct {
	label string
}

// NewEnforcer returns an enforcer that labels appended citations with label.
// An empty label appends bare "[Page N]" markers.
func NewEnforcer(label string) *Enforcer {
	return &Enforcer{label: strings.TrimSpace(label)}
}

// Enforce returns answer with every citation checked against evidence.
// Citations to pages outside the evidence are removed; if none survive, one
// to the top evidence page is appended. Empty evidence, a not-found draft or
// evidence without any page number yields NotFound.
func (e *Enforcer) Enforce(answer string, evidence []retrieval.Evidence) string {
	if len(evidence) == 0 || signalsNotFound(answer) {
		return NotFound
	}

	valid := make(map[int]bool)
	top := 0
	for _, ev := range evidence {
		if ev.Passage == nil || ev.Passage.Page <= 0 {
			continue
		}
		if top == 0 {
			top = ev.Passage.Page
		}
		valid[ev.Passage.Page] = true
	}
	if top == 0 {
		return NotFound
	}

	kept := 0
	out := markerPattern.ReplaceAllStringFunc(answer, func(m string) string {
		sub := markerPattern.FindStringSubmatch(m)
		page, err := strconv.Atoi(sub[1])
		if err != nil || !valid[page] {
			return ""
		}
		kept++
		return m
	})
	out = tidy(out)

	if kept > 0 {
		return out
	}
	if out == "" {
		return NotFound
	}
	return fmt.Sprintf("%s %s.", strings.TrimRight(out, "."), e.marker(top))
}

func (e *Enforcer) marker(page int) string {
	if e.label == "" {
		return fmt.Sprintf("[Page %d]", page)
	}
	return fmt.Sprintf("[%s, Page %d]", e.label, page)
}

// #endregion enforcer

// #region helpers
// Pages returns the page numbers cited in text, in order of appearance.
func Pages(text string) []int {
	var out []int
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		if p, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func signalsNotFound(answer string) bool {
	return strings.Contains(strings.ToLower(answer), "i could not find this information")
}

func tidy(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return spaceBeforePunct.ReplaceAllString(s, "$1")
}

// #endregion helpers
