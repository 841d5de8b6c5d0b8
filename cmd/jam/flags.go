package main

import "flag"

// flagSet wraps flag.FlagSet with ContinueOnError, grounded on the
// teacher's cmd/eth2030/flags.go wrapper.
type flagSet struct {
	*flag.FlagSet
}

func newCustomFlagSet(name string) *flagSet {
	return &flagSet{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
}
