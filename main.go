package main

import "github.com/thearjunkv/dots-and-boxes-backend/cmd"

func main() {
	cmd.Execute()
}
