// Package filter decides whether a captured selection may be persisted.
// Policies run in a fixed order and the first rejection wins; its reason
// is logged, never the payload.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/entry"
	stasherr "github.com/stashd/stash/internal/errors"
)

// Candidate is a selection offered for persistence.
type Candidate struct {
	Payload   []byte
	Mime      string
	SourceApp *string
}

// Decision is the filter verdict. Reason names the rejecting policy.
type Decision struct {
	Admit  bool
	Reason string
}

func admitted() Decision              { return Decision{Admit: true} }
func rejected(reason string) Decision { return Decision{Reason: reason} }

type policy struct {
	name  string
	check func(f *Filter, c Candidate) Decision
}

// policies run in precedence order: excluded app, then the sensitive
// regex, then size bounds, then the mime allowlist.
var policies = []policy{
	{"excluded-app", (*Filter).checkExcludedApp},
	{"sensitive", (*Filter).checkSensitive},
	{"size", (*Filter).checkSize},
	{"mime", (*Filter).checkMime},
}

// Filter holds the compiled admission policies.
type Filter struct {
	excludedApps map[string]struct{}
	sensitive    *regexp.Regexp
	minSize      int
	maxSize      int
	acceptMime   map[string]struct{}
}

// New compiles the policies from resolved configuration. An invalid
// sensitive regex is fatal at startup.
func New(cfg *config.Config) (*Filter, error) {
	f := &Filter{
		minSize: cfg.MinSize,
		maxSize: cfg.MaxSize,
	}
	if len(cfg.ExcludedApps) > 0 {
		f.excludedApps = make(map[string]struct{}, len(cfg.ExcludedApps))
		for _, app := range cfg.ExcludedApps {
			f.excludedApps[app] = struct{}{}
		}
	}
	if cfg.SensitiveRegex != "" {
		re, err := regexp.Compile(cfg.SensitiveRegex)
		if err != nil {
			return nil, stasherr.NewFilterRegexInvalid(err)
		}
		f.sensitive = re
	}
	if len(cfg.AcceptMime) > 0 {
		f.acceptMime = make(map[string]struct{}, len(cfg.AcceptMime))
		for _, m := range cfg.AcceptMime {
			f.acceptMime[m] = struct{}{}
		}
	}
	return f, nil
}

// Admit runs the policy table and returns the first rejection, or an
// admitting decision when every policy passes.
func (f *Filter) Admit(c Candidate) Decision {
	for _, p := range policies {
		if d := p.check(f, c); !d.Admit {
			return d
		}
	}
	return admitted()
}

// checkExcludedApp rejects captures from listed window classes. With no
// focus information the policy admits; the oracle warned once already.
func (f *Filter) checkExcludedApp(c Candidate) Decision {
	if c.SourceApp == nil || len(f.excludedApps) == 0 {
		return admitted()
	}
	if _, found := f.excludedApps[*c.SourceApp]; found {
		return rejected(fmt.Sprintf("excluded app %q", *c.SourceApp))
	}
	return admitted()
}

func (f *Filter) checkSensitive(c Candidate) Decision {
	if f.sensitive == nil || !entry.IsTextual(c.Mime) {
		return admitted()
	}
	if f.sensitive.Match(c.Payload) {
		return rejected("sensitive pattern matched")
	}
	return admitted()
}

func (f *Filter) checkSize(c Candidate) Decision {
	n := len(c.Payload)
	if n < f.minSize {
		return rejected(fmt.Sprintf("payload %d B below minimum %d B", n, f.minSize))
	}
	if f.maxSize > 0 && n > f.maxSize {
		return rejected(fmt.Sprintf("payload %d B above maximum %d B", n, f.maxSize))
	}
	if entry.IsTextual(c.Mime) && isAllSpace(c.Payload) {
		return rejected("whitespace-only text")
	}
	return admitted()
}

func (f *Filter) checkMime(c Candidate) Decision {
	if len(f.acceptMime) == 0 {
		return admitted()
	}
	if _, found := f.acceptMime[c.Mime]; found {
		return admitted()
	}
	return rejected(fmt.Sprintf("mime %s not in allowlist", c.Mime))
}

func isAllSpace(data []byte) bool {
	s := string(data)
	if s == "" {
		return true
	}
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) == -1
}
