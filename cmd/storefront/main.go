package main

import "github.com/bugisthegod/techmart-storefront/cmd/storefront/cmd"

func main() {
	cmd.Execute()
}
