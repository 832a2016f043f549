package main

import "github.com/KaramelBytes/riskdash/cmd"

func main() {
	cmd.Execute()
}
