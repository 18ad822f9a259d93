package main

import "github.com/KaramelBytes/insighthub-cli/cmd"

func main() {
	cmd.Execute()
}
