package main

import (
	"github.com/dee-me-tree-or-love/KGTorrent/src/cmd/kgtorrent/cmds"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/cmdutil"
)

func main() {
	if err := cmds.RootCmd().Execute(); err != nil {
		cmdutil.ErrorAndExit("%v", err)
	}
}
