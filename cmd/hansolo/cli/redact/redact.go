// Package redact strips secrets from text headed for the audit log.
// Tool inputs may carry tokens pasted into PR descriptions or branch
// names; the log is plain NDJSON in the repository, so anything that
// looks like a credential is masked before it is written.
package redact

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// candidatePattern matches token-shaped runs worth an entropy test.
var candidatePattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy for a candidate to be
// masked. Branch names and commit subjects sit well below it; API keys
// and signed tokens sit well above.
const entropyThreshold = 4.5

const mask = "REDACTED"

var (
	detector     *detect.Detector
	detectorOnce sync.Once
)

func getDetector() *detect.Detector {
	detectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		detector = d
	})
	return detector
}

type span struct{ start, end int }

// String masks secrets in s. Detection is layered: high-entropy
// token-shaped runs, plus the gitleaks rule set for known credential
// formats. A run flagged by either layer is replaced with "REDACTED".
func String(s string) string {
	var spans []span

	for _, loc := range candidatePattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > entropyThreshold {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}

	if d := getDetector(); d != nil {
		for _, finding := range d.DetectString(s) {
			if finding.Secret == "" {
				continue
			}
			from := 0
			for {
				idx := strings.Index(s[from:], finding.Secret)
				if idx < 0 {
					break
				}
				start := from + idx
				spans = append(spans, span{start, start + len(finding.Secret)})
				from = start + len(finding.Secret)
			}
		}
	}

	if len(spans) == 0 {
		return s
	}
	return apply(s, spans)
}

// apply replaces the given spans with the mask, merging overlaps so
// adjacent findings collapse into one marker.
func apply(s string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range merged {
		b.WriteString(s[prev:sp.start])
		b.WriteString(mask)
		prev = sp.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for i := range len(s) {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
