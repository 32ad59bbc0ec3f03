// Command pitboss is the single entry point for the pitboss operations core:
// the task dispatcher, the balance ledger, and the alert stream.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
