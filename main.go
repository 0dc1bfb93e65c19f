package main

import "github.com/mkhalif/rolodex/cmd"

func main() {
	cmd.Execute()
}
