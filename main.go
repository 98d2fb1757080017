package main

import "github.com/nextlevelbuilder/gomemory/cmd"

func main() {
	cmd.Execute()
}
