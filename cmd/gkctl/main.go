// Command gkctl watches a GateKeeper decision log from the terminal.
package main

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	Execute(Version)
}
