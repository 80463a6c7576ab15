// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import "strings"

// FastReject decides that a guid cannot exist without asking the remote
// store. A guid it rejects is reported as not found, so a real device whose
// guid matches can never be found.
type FastReject interface {
	// Name labels the policy in metrics.
	Name() string

	Reject(guid string) bool
}

// DefaultRejectPatterns are the placeholder prefixes test tooling tends to use.
func DefaultRejectPatterns() []string {
	return []string{
		"test-",
		"fake-",
		"erp-device-test-",
		"erp-device-fake-",
		"dummy-",
		"sample-",
		"placeholder-",
		"mock-",
	}
}

// PatternReject rejects guids containing any of its patterns, ignoring case.
type PatternReject struct {
	patterns []string
}

// NewPatternReject builds a PatternReject. Empty patterns are ignored.
func NewPatternReject(patterns ...string) PatternReject {
	r := PatternReject{}
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); len(p) > 0 {
			r.patterns = append(r.patterns, p)
		}
	}
	return r
}

func (PatternReject) Name() string { return "pattern" }

func (r PatternReject) Reject(guid string) bool {
	guid = strings.ToLower(guid)
	for _, p := range r.patterns {
		if strings.Contains(guid, p) {
			return true
		}
	}
	return false
}

// NeverReject sends every lookup to the remote store.
type NeverReject struct{}

func (NeverReject) Name() string { return "never" }

func (NeverReject) Reject(string) bool { return false }

// NewFastReject builds the policy described by the configuration.
func NewFastReject(config FastRejectConfig) FastReject {
	if config.Disabled {
		return NeverReject{}
	}
	patterns := config.Patterns
	if len(patterns) == 0 {
		patterns = DefaultRejectPatterns()
	}
	return NewPatternReject(patterns...)
}
