package main

import "os"

const versionString = "viua-asm " + Version

func main() {
	os.Exit(RunCLI(os.Args[1:]))
}
