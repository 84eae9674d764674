package main

import (
	"log"

	"devecho/cli"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cli.Execute()
}
