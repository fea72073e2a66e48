package main

import "github.com/samhoang/ashpm/cmd"

func main() {
	cmd.Execute()
}
