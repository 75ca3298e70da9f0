// Package remotefs provides thin proxies over a target's POSIX file,
// directory, and filesystem opcodes. Every method here is a single RPC;
// the higher-level traversal helpers (ReadDirectory, RemoveDirectory,
// CreateDirectory) compose those single calls.
//
// Each File and Dir exclusively owns its remote handle and must be closed
// by its opener; there is no handle sharing.
package remotefs
