// Command subforge serves per-user proxy client configurations synthesized
// from a shared template, an upstream subscription and IP pools.
//
// Usage:
//
//	subforge                       # same as "subforge serve"
//	subforge serve -c subforge.yaml
//	subforge render --template template.yaml --ips ips.csv --remote https://...
//	subforge naming validate "{name}-{index}"
//	subforge user add --id alice --subscription https://...
//	subforge healthcheck
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
