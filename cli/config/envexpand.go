// Package config loads netbackup.yaml.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR-default}.
//   - ${VAR} expands to the value, or "" if unset
//   - ${VAR:-default} uses default when VAR is unset or empty
//   - ${VAR-default} uses default only when VAR is unset
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:?-)([^}]*))?\}`)

// ExpandEnv replaces environment references in input.
// Unset variables without a default expand to the empty string; missing
// secrets surface later as validation or authentication failures.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, fallback := groups[1], groups[2], groups[3]

		value, set := os.LookupEnv(name)
		switch {
		case op == ":-" && value == "":
			return fallback
		case op == "-" && !set:
			return fallback
		default:
			return value
		}
	})
}
