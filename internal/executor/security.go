package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// AllowedBinaryPaths are the directories where system tools are expected.
var AllowedBinaryPaths = []string{
	"/usr/sbin",
	"/usr/bin",
	"/sbin",
	"/bin",
	"/usr/local/bin",
	"/usr/local/sbin",
	"/snap/bin",
}

// SecurityChecker verifies binary integrity and sanitizes execution environment.
type SecurityChecker struct {
	allowedPaths     []string
	requireRootOwned bool
}

// NewSecurityChecker creates a SecurityChecker with default allowed paths
// that only accepts root-owned binaries.
func NewSecurityChecker() *SecurityChecker {
	return &SecurityChecker{
		allowedPaths:     AllowedBinaryPaths,
		requireRootOwned: true,
	}
}

// NewSecurityCheckerWithPaths restricts lookup to paths. Tests use it with a
// temporary directory and requireRootOwned=false.
func NewSecurityCheckerWithPaths(paths []string, requireRootOwned bool) *SecurityChecker {
	return &SecurityChecker{
		allowedPaths:     paths,
		requireRootOwned: requireRootOwned,
	}
}

// ResolveBinary finds the tool binary in allowed paths.
func (sc *SecurityChecker) ResolveBinary(tool string) (string, error) {
	if strings.ContainsRune(tool, filepath.Separator) {
		return "", fmt.Errorf("tool %q: name must not contain a path: %w", tool, ErrNotFound)
	}
	for _, dir := range sc.allowedPaths {
		path := filepath.Join(dir, tool)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("tool %q not in %v: %w", tool, sc.allowedPaths, ErrNotFound)
}

// VerifyBinary checks that a binary meets security requirements:
//   - Must be in an allowed directory
//   - Must be owned by root (unless disabled)
//   - Must not be world-writable
func (sc *SecurityChecker) VerifyBinary(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(absPath)
	allowed := false
	for _, allowedDir := range sc.allowedPaths {
		if dir == filepath.Clean(allowedDir) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("binary %q is not in an allowed directory", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", absPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", absPath)
	}

	if sc.requireRootOwned {
		if stat, ok := info.Sys().(*syscall.Stat_t); ok && stat.Uid != 0 {
			return fmt.Errorf("binary %q is not owned by root (uid=%d)", absPath, stat.Uid)
		}
	}

	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("binary %q is world-writable (mode=%s)", absPath, info.Mode())
	}

	return nil
}

// SanitizeEnv creates a minimal subprocess environment. Locale is forced to
// C so tool output stays parseable.
func (sc *SecurityChecker) SanitizeEnv() []string {
	safeVars := map[string]bool{
		"PATH":   true,
		"HOME":   true,
		"TERM":   true,
		"TMPDIR": true,
	}

	var env []string
	hasPath := false
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 && safeVars[parts[0]] {
			env = append(env, e)
			if parts[0] == "PATH" {
				hasPath = true
			}
		}
	}

	if !hasPath {
		env = append(env, "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	return append(env, "LANG=C", "LC_ALL=C")
}
