package main

import "github.com/smartrestaurant/gateway/cmd/gateway/cmd"

func main() {
	cmd.Execute()
}
