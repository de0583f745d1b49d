package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} in input.
//
// A variable that is unset or empty takes its default, or expands to the
// empty string when there is none. Missing required values surface later
// in Validate or when the sink or adapter is built.
func ExpandEnv(input string) string {
	matches := envVarPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, m := range matches {
		b.WriteString(input[last:m[0]])
		name := input[m[2]:m[3]]
		value := os.Getenv(name)
		if value == "" && m[4] >= 0 {
			value = input[m[4]:m[5]]
		}
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(input[last:])
	return b.String()
}
