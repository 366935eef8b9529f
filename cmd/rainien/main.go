package main

import "github.com/Cam1McH/RainienShare-sub001/cmd/rainien/cmd"

func main() {
	cmd.Execute()
}
