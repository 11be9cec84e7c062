package main

import "track17-scrapper/cmd/track/cmd"

func main() {
	cmd.Execute()
}
