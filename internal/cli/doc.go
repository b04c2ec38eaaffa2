// Package cli locates the agent binary and builds its invocation.
//
// # Discovery
//
// The Locator interface finds the agent binary:
//
//	loc := cli.NewLocator("", false, logger)
//	path, err := loc.Locate(ctx)
//
// Search order:
//  1. Explicit path (when provided)
//  2. System PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// During discovery the binary version is probed against MinimumVersion and a
// warning logged when the binary is older. The probe is best-effort and can
// be skipped via an option or the AGENTWIRE_SKIP_VERSION_CHECK environment
// variable.
//
// # Command building
//
// BuildArgs and BuildEnvironment turn Options into the argv and environment
// the process layer consumes:
//
//	args := cli.BuildArgs("prompt", opts, streaming)
//	env := cli.BuildEnvironment(opts)
package cli
