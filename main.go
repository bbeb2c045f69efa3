package main

import "github.com/cinelist/watchlist/cmd"

func main() {
	cmd.Execute()
}
