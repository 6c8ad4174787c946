package main

import "github.com/andresmejia3/streamsnap/cmd"

func main() {
	cmd.Execute()
}
