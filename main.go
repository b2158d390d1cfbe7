package main

import "github.com/harvestsmart/harvestsmart/cmd"

func main() {
	cmd.Execute()
}
