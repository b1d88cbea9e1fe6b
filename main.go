package main

import "github.com/user/shotpost/cmd"

func main() {
	cmd.Execute()
}
