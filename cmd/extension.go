package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Environment passed to extensions, so they open the same store as folio would.
const (
	EnvConfig      = "FOLIO_CONFIG"
	EnvStoreDriver = "FOLIO_STORE_DRIVER"
	EnvStoreDSN    = "FOLIO_STORE_DSN"
)

// ExtensionPrefix prefixes the name of the executables that extend folio.
const ExtensionPrefix = "folio-"

// RunExtension runs the folio-<subcommand> executable found in PATH, if any.
// It reports whether an extension was found, and its exit code.
func RunExtension(subcommand string, args []string) (bool, int) {
	return runExtension(subcommand, args, os.Stdin, os.Stdout, os.Stderr)
}

func runExtension(subcommand string, args []string, stdin io.Reader, stdout, stderr io.Writer) (bool, int) {
	name := ExtensionPrefix + subcommand
	lp, err := exec.LookPath(name)
	if err != nil {
		return false, 0
	}

	cmd := exec.Command(lp, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), extensionEnv()...)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return true, exitErr.ExitCode()
		}
		fmt.Fprintf(stderr, "Error executing %q: %v\n", name, err)
		return true, 1
	}
	return true, 0
}

// extensionEnv returns the global flags as environment variables. Unset flags are left out
// so that the extension reads the same configuration as folio.
func extensionEnv() []string {
	var env []string
	for _, kv := range [][2]string{
		{EnvConfig, *configFile},
		{EnvStoreDriver, *storeDriver},
		{EnvStoreDSN, *storeDSN},
	} {
		if kv[1] != "" {
			env = append(env, kv[0]+"="+kv[1])
		}
	}
	return env
}
