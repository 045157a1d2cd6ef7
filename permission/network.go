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

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// NetworkRule is one entry of a sandbox's network policy, evaluated
// against an outbound/inbound connection attempt.
type NetworkRule struct {
	Kind    NetworkRuleKind
	Network *net.IPNet
	PortMin int
	PortMax int
}

// ParseNetworkRule builds a NetworkRule from a CIDR string (or a bare host,
// treated as a /32 or /128), using netlink's address parser.
func ParseNetworkRule(kind NetworkRuleKind, cidr string, portMin, portMax int) (NetworkRule, error) {
	if cidr == "" {
		return NetworkRule{Kind: kind, PortMin: portMin, PortMax: portMax}, nil
	}

	addr, err := netlink.ParseAddr(withMask(cidr))
	if err != nil {
		return NetworkRule{}, fmt.Errorf("permission: invalid network rule %q: %w", cidr, err)
	}
	return NetworkRule{Kind: kind, Network: addr.IPNet, PortMin: portMin, PortMax: portMax}, nil
}

// withMask appends a host mask to a bare IP so netlink.ParseAddr (which
// expects CIDR notation) accepts plain host rules too.
func withMask(cidr string) string {
	for _, r := range cidr {
		if r == '/' {
			return cidr
		}
	}
	ip := net.ParseIP(cidr)
	if ip == nil {
		return cidr
	}
	if ip.To4() != nil {
		return cidr + "/32"
	}
	return cidr + "/128"
}

// Matches reports whether ip/port falls within the rule's scope.
func (r NetworkRule) Matches(ip net.IP, port int) bool {
	if r.Network != nil && !r.Network.Contains(ip) {
		return false
	}
	if r.PortMin != 0 || r.PortMax != 0 {
		if port < r.PortMin || port > r.PortMax {
			return false
		}
	}
	return true
}

// EvaluateNetworkRules walks rules in order and returns the first match's kind; an
// empty rule set is treated as implicit deny, matching the policy engine's
// own default-deny fallthrough.
func EvaluateNetworkRules(rules []NetworkRule, ip net.IP, port int) NetworkRuleKind {
	for _, r := range rules {
		if r.Matches(ip, port) {
			return r.Kind
		}
	}
	return RuleDeny
}
