package configuration

import (
	"os"
	"strings"
)

// LoadEnvFromFile seeds the process environment from KEY=VALUE files such as
// config.env or .env. Variables already set in the environment win. Missing
// files are skipped, as are blank lines and # comments; values may be single
// or double quoted.
func LoadEnvFromFile(paths ...string) {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, val, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			val = strings.Trim(strings.TrimSpace(val), `"'`)
			if key == "" {
				continue
			}
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
