// Command link is a reference desktop tool built on this module: it
// connects to a target device over a serial tty and lets an operator list
// devices, inspect system state, install application binaries, and update
// firmware from the command line. USB paths are parsed, but dialing one
// returns an error in this build.
package main

func main() {
	Execute()
}
