// Package cli implements the slurmdash command line.
//
// Commands:
//
//	serve     poll configured clusters and serve their state over HTTP
//	status    refresh every cluster once and print a table (or --json)
//	hosts     list ~/.ssh/config aliases usable as cluster hosts
//	init      write a starter slurmdash.yaml
//	version   print build information
//
// Global flags --config, --log-level, --log-format and --no-color apply to
// every command.
package cli
