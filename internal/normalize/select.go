package normalize

import (
	"regexp"
	"strings"

	"github.com/mark3labs/apispecc/internal/ir"
)

// Option configures which operations a Selector admits.
type Option func(*selectConfig)

type selectConfig struct {
	includeNS map[string]struct{}
	excludeNS map[string]struct{}
	nameRes   []*regexp.Regexp
}

// WithIncludeNamespaces keeps only operations in one of the given
// namespaces (the part of the name before the first dot).
func WithIncludeNamespaces(ns []string) Option {
	return func(c *selectConfig) {
		if len(ns) == 0 {
			return
		}
		if c.includeNS == nil {
			c.includeNS = make(map[string]struct{}, len(ns))
		}
		for _, n := range ns {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			c.includeNS[n] = struct{}{}
		}
	}
}

// WithExcludeNamespaces removes operations in any of the given namespaces.
func WithExcludeNamespaces(ns []string) Option {
	return func(c *selectConfig) {
		if len(ns) == 0 {
			return
		}
		if c.excludeNS == nil {
			c.excludeNS = make(map[string]struct{}, len(ns))
		}
		for _, n := range ns {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			c.excludeNS[n] = struct{}{}
		}
	}
}

// WithNamePatterns keeps only operations whose full name matches at least
// one of the regular expressions. An invalid pattern matches nothing.
func WithNamePatterns(patterns []string) Option {
	return func(c *selectConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.nameRes = append(c.nameRes, re)
		}
	}
}

// Selector decides which operations take part in a run.
type Selector struct {
	cfg selectConfig
}

// NewSelector builds a Selector. With no options it admits everything.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

// Allow reports whether the operation called name is selected. A nil
// Selector admits everything.
func (s *Selector) Allow(name string) bool {
	if s == nil {
		return true
	}
	ns := ir.NamespaceOf(name)
	if len(s.cfg.includeNS) > 0 {
		if _, ok := s.cfg.includeNS[ns]; !ok {
			return false
		}
	}
	if _, blocked := s.cfg.excludeNS[ns]; blocked {
		return false
	}
	if len(s.cfg.nameRes) > 0 {
		for _, re := range s.cfg.nameRes {
			if re.MatchString(name) {
				return true
			}
		}
		return false
	}
	return true
}
