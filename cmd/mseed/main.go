/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/mseedkit/cmd/mseed/cmd"

func main() {
	cmd.Execute()
}
