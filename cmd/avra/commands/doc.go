// Package commands defines the avra CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init           Provision the local agent identity
//   - rotate-keys    Generate fresh prekeys and publish them to the directory
//   - safety-number  Show or verify the safety number shared with a peer
//   - encrypt        Encrypt stdin for a peer
//   - decrypt        Decrypt a ciphertext from stdin
//   - status         Show agent, key and session state
//
// The root command loads the YAML config, compiles the logging setup and
// opens the database before any subcommand runs, so handlers share one
// store container and one configured logger.
package commands
