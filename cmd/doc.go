// Package cmd implements the command-line interface of veridian. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the API server on the configured store backend
//   - users, chats, alerts: Client commands for the stored records
//   - metrics: Client commands for the generated metrics and the server health
//   - bench: Load tests a running server through its API
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as VERIDIAN_<FLAG> in the environment or in a .env file.
// See veridian -help for a list of all commands.
package cmd
