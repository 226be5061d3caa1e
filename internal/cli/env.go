package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideEnvVar names an env file that wins over the --env flag.
const OverrideEnvVar = "OPSDASH_ENV_FILE"

// EnvLoader loads .env files with a predictable override order:
// OPSDASH_ENV_FILE, then the --env flag, then its basename, then the default path.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	value := fs.String("env", defaultPath, description)
	return &EnvLoader{
		value:       value,
		defaultPath: defaultPath,
	}
}

// Load overlays the first readable candidate onto the process environment and returns its path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	candidates := l.candidates()
	for _, path := range candidates {
		if err := godotenv.Overload(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no env file found (tried %s)", strings.Join(candidates, ", "))
}

func (l *EnvLoader) candidates() []string {
	out := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	add(os.Getenv(OverrideEnvVar))

	requested := ""
	if l.value != nil {
		requested = strings.TrimSpace(*l.value)
	}
	if requested == "" {
		requested = l.defaultPath
	}
	add(requested)
	if base := filepath.Base(requested); base != "." && base != string(filepath.Separator) {
		add(base)
	}
	add(l.defaultPath)
	return out
}
