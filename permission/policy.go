//
// Copyright 2024-2026 sandboxrt. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package permission

import "net"

// Verdict is one policy's opinion on a request: it may defer by returning
// verdictAbstain, letting later policies (or the capability-set default)
// decide.
type Verdict int

const (
	verdictAbstain Verdict = iota
	verdictAllow
	verdictDeny
)

// Request is a single permission check, as presented to Engine.Check.
type Request struct {
	Action   Kind
	Resource Capability
}

// Policy is one evaluation rule in the engine's registration-ordered chain,
// per spec.md section 4.1 step 3: policies are evaluated in order, first
// Deny wins, otherwise any Allow wins, otherwise default deny.
type Policy interface {
	Name() string
	Evaluate(sandbox *Sandbox, req Request) (Verdict, string)
}

// capabilityPolicy is the baseline policy: allow when the sandbox's
// capability set grants the requested capability, abstain otherwise (so the
// other policies in the chain, or the engine's default deny, decide).
type capabilityPolicy struct{}

func (capabilityPolicy) Name() string { return "capability_set" }

func (capabilityPolicy) Evaluate(sandbox *Sandbox, req Request) (Verdict, string) {
	if sandbox.Capabilities.Has(req.Resource) {
		return verdictAllow, "capability granted"
	}
	return verdictAbstain, ""
}

// pathPolicy enforces the sandbox's AllowedPaths/BlockedPaths lists for
// path-scoped requests: a blocked path is denied, a path under an allowed
// root is allowed and any other path is denied. With no AllowedPaths it
// abstains after the blocked check, leaving the request to the capability
// set, unlike AccessAllowed, which denies everything for an empty list.
type pathPolicy struct{}

func (pathPolicy) Name() string { return "path_rules" }

func (pathPolicy) Evaluate(sandbox *Sandbox, req Request) (Verdict, string) {
	if !req.Action.isPathScoped() {
		return verdictAbstain, ""
	}
	path := req.Resource.Scope.Path
	for _, b := range sandbox.BlockedPaths {
		if pathContains(b, path) {
			return verdictDeny, "path explicitly blocked: " + b
		}
	}
	if len(sandbox.AllowedPaths) == 0 {
		return verdictAbstain, ""
	}
	for _, a := range sandbox.AllowedPaths {
		if pathContains(a, path) {
			return verdictAllow, "path within allowed root: " + a
		}
	}
	return verdictDeny, "path outside all allowed roots"
}

// networkPolicy enforces the sandbox's NetworkRules for NetworkAccess
// requests.
type networkPolicy struct{}

func (networkPolicy) Name() string { return "network_rules" }

func (networkPolicy) Evaluate(sandbox *Sandbox, req Request) (Verdict, string) {
	if req.Action != NetworkAccess || len(sandbox.NetworkRules) == 0 {
		return verdictAbstain, ""
	}
	ip := parseRequestIP(req.Resource.Scope.Host)
	port := req.Resource.Scope.PortMin
	switch EvaluateNetworkRules(sandbox.NetworkRules, ip, port) {
	case RuleAllowAll, RuleAllow:
		return verdictAllow, "network rule allow"
	default:
		return verdictDeny, "network rule deny"
	}
}

// parseRequestIP resolves a request's host to an IP for rule matching,
// returning the zero IP for an unparseable or empty host so a CIDR-only
// rule (Network set, Host empty) still gets a chance to abstain correctly.
func parseRequestIP(host string) net.IP {
	if host == "" {
		return net.IP{}
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	addrs, err := net.LookupIP(host)
	if err != nil || len(addrs) == 0 {
		return net.IP{}
	}
	return addrs[0]
}

// DefaultPolicies returns the engine's standard registration-ordered chain:
// explicit path/network rules are checked before falling back to the
// sandbox's general capability set, so a narrower rule can veto a broader
// capability grant.
func DefaultPolicies() []Policy {
	return []Policy{pathPolicy{}, networkPolicy{}, capabilityPolicy{}}
}
