package main

import "github.com/nextlevelbuilder/harvestgate/cmd"

func main() {
	cmd.Execute()
}
