// Package endpointurl defines the structure the core consumes once an
// endpoint address has been parsed. Real URL parsing is an external
// collaborator per the spec's scope; this package's Parse is a minimal
// stdlib net/url-based implementation only so the rest of the module has
// something to build and test against — it is not the domain dependency
// the spec scopes out.
package endpointurl

import (
	"fmt"
	"net/url"
	"strconv"
)

// Scheme identifies which kind of Endpoint a Spec describes.
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeUDP  Scheme = "udp"
)

// Spec is the parsed form of an endpoint address:
//
//	file://<path>[#<group>]
//	udp://[<key>@|<user>:<pass>@]<host>[:<port>][#<group>]
type Spec struct {
	Scheme Scheme
	Path   string // file:// only
	Host   string // udp:// only
	Port   int    // udp:// only, 0 if unspecified
	Group  *uint8 // shared fragment syntax
	Key    string // udp:// shared-secret auth
	User   string // udp:// user/password auth
	Pass   string
}

// Parse parses an endpoint URL into a Spec.
func Parse(raw string) (Spec, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Spec{}, fmt.Errorf("endpointurl: %w", err)
	}

	var spec Spec

	switch u.Scheme {
	case string(SchemeFile):
		spec.Scheme = SchemeFile
		spec.Path = u.Path
		if spec.Path == "" {
			spec.Path = u.Opaque
		}
	case string(SchemeUDP):
		spec.Scheme = SchemeUDP
		spec.Host = u.Hostname()

		if portStr := u.Port(); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Spec{}, fmt.Errorf("endpointurl: invalid port %q: %w", portStr, err)
			}
			spec.Port = port
		}

		if u.User != nil {
			if pass, hasPass := u.User.Password(); hasPass {
				spec.User = u.User.Username()
				spec.Pass = pass
			} else {
				spec.Key = u.User.Username()
			}
		}
	default:
		return Spec{}, fmt.Errorf("endpointurl: unsupported scheme %q", u.Scheme)
	}

	if u.Fragment != "" {
		group, err := strconv.ParseUint(u.Fragment, 10, 8)
		if err != nil {
			return Spec{}, fmt.Errorf("endpointurl: invalid group fragment %q: %w", u.Fragment, err)
		}
		g := uint8(group)
		spec.Group = &g
	}

	return spec, nil
}
