package main

import "github.com/nextlevelbuilder/qabot/cmd"

func main() {
	cmd.Execute()
}
