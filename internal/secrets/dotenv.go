package secrets

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dohr-michael/nudge/internal/config"
	"github.com/dohr-michael/nudge/internal/storage"
)

// TokenEnvVar is the .env entry holding the transport token.
const TokenEnvVar = config.TokenEnv

// SetEntry writes or updates a KEY=VALUE line in a .env file, keeping
// comments, blank lines and ordering. The file is rewritten atomically
// with 0o600 permissions.
func SetEntry(path, key, value string) error {
	lines, err := readLines(path)
	if err != nil {
		return fmt.Errorf("read dotenv: %w", err)
	}

	newLine := key + "=" + quoteValue(value)
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimPrefix(strings.TrimSpace(line), "export ")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if k, _, ok := strings.Cut(trimmed, "="); ok && strings.TrimSpace(k) == key {
			lines[i] = newLine
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, newLine)
	}

	return storage.WriteFileAtomic(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

// readLines returns the lines of path, or none when it does not exist.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// quoteValue wraps the value in double quotes if it contains spaces, quotes, or special chars.
func quoteValue(v string) string {
	if strings.ContainsAny(v, " \t\"'\\#$") {
		escaped := strings.ReplaceAll(v, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return v
}
