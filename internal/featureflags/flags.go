package featureflags

import (
	"os"
	"strings"
)

// Flags gating behavior the original system left undecided. Both default to
// off, preserving the permissive behavior of the source data model.
const (
	// StrictTenantEmail rejects tenant creation and provisioning when any
	// tenant record already carries the email.
	StrictTenantEmail = "strict_tenant_email"

	// TenantVersionCheck honors the expected record version on tenant
	// updates instead of last-write-wins.
	TenantVersionCheck = "tenant_version_check"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive).
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
