package main

import cmd "github.com/lifegpc/cwm-export/cmd/cwm"

func main() {
	cmd.Execute()
}
