// Package cpanfile reads requirements from a distribution's cpanfile.
package cpanfile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

// Phase is a cpanfile prerequisite phase.
type Phase string

const (
	PhaseRuntime   Phase = "runtime"
	PhaseBuild     Phase = "build"
	PhaseTest      Phase = "test"
	PhaseConfigure Phase = "configure"
	PhaseDevelop   Phase = "develop"
)

// Parser parses cpanfile DSL.
type Parser struct{}

// NewParser creates a new cpanfile parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseResult contains parsed requirements grouped by phase.
type ParseResult struct {
	Requirements map[Phase]dist.Deps
}

// NewParseResult creates an empty parse result.
func NewParseResult() *ParseResult {
	return &ParseResult{
		Requirements: make(map[Phase]dist.Deps),
	}
}

func (r *ParseResult) add(phase Phase, module, version string) {
	if r.Requirements[phase] == nil {
		r.Requirements[phase] = make(dist.Deps)
	}
	r.Requirements[phase].Set(module, version)
}

// Runtime returns the runtime requirements, never nil.
func (r *ParseResult) Runtime() dist.Deps {
	if deps := r.Requirements[PhaseRuntime]; deps != nil {
		return deps
	}
	return dist.Deps{}
}

// Build returns the build, test and configure requirements merged.
func (r *ParseResult) Build() dist.Deps {
	deps := make(dist.Deps)
	for _, phase := range []Phase{PhaseBuild, PhaseTest, PhaseConfigure} {
		deps.Merge(r.Requirements[phase])
	}
	return deps
}

var (
	requiresRe = regexp.MustCompile(`^\s*(requires|build_requires|test_requires|configure_requires)\s*\(?\s*['"]([^'"]+)['"](?:\s*(?:,|=>)\s*(?:['"]([^'"]*)['"]|([0-9][0-9._]*)))?`)
	onBlockRe  = regexp.MustCompile(`^\s*on\s+['"]?(\w+)['"]?\s*=>\s*sub\s*\{`)
	closeRe    = regexp.MustCompile(`^\s*\}`)
)

// Parse parses a cpanfile and returns requirements by phase.
func (p *Parser) Parse(r io.Reader) (*ParseResult, error) {
	result := NewParseResult()
	currentPhase := PhaseRuntime
	inBlock := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments and empty lines
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		// Check for on 'phase' => sub { block
		if matches := onBlockRe.FindStringSubmatch(line); matches != nil {
			currentPhase = parsePhase(matches[1])
			inBlock = true
			continue
		}

		// Check for closing brace
		if inBlock && closeRe.MatchString(line) {
			currentPhase = PhaseRuntime
			inBlock = false
			continue
		}

		// Check for requires statement
		if matches := requiresRe.FindStringSubmatch(line); matches != nil {
			phase := currentPhase
			switch matches[1] {
			case "build_requires":
				phase = PhaseBuild
			case "test_requires":
				phase = PhaseTest
			case "configure_requires":
				phase = PhaseConfigure
			}
			version := matches[3]
			if version == "" {
				version = matches[4]
			}
			result.add(phase, matches[2], version)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cpanfile: %w", err)
	}

	return result, nil
}

func parsePhase(s string) Phase {
	switch strings.ToLower(s) {
	case "test":
		return PhaseTest
	case "develop":
		return PhaseDevelop
	case "build":
		return PhaseBuild
	case "configure":
		return PhaseConfigure
	default:
		return PhaseRuntime
	}
}
