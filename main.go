package main

import "github.com/frahmantamala/datashare/cmd"

func main() {
	cmd.Execute()
}
