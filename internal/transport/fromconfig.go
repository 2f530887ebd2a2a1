package transport

import (
	"fmt"

	"github.com/kb9vty/ump2/internal/config"
)

// CredentialsFromConfig converts the on-disk auth config into the
// Credentials a Session expects.
func CredentialsFromConfig(ac config.AuthConfig) (Credentials, error) {
	switch ac.Mode {
	case "", "none":
		return Credentials{Mode: AuthNone}, nil
	case "shared-key":
		return Credentials{Mode: AuthSharedKey, SharedKey: ac.SharedKey}, nil
	case "user-pass":
		return Credentials{Mode: AuthUserPass, Username: ac.Username, Password: ac.Password}, nil
	default:
		return Credentials{}, fmt.Errorf("transport: unknown auth mode %q", ac.Mode)
	}
}
