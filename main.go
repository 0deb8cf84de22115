package main

import (
	"os"

	"github.com/zalepa/metas/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
