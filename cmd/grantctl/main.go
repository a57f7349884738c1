package main

import "go.pilab.hu/codegrant/cmd/grantctl/cmd"

func main() {
	cmd.Execute()
}
