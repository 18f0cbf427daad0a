// Package main is the entry point for the dalvik-runner CLI.
package main

func main() {
	Execute()
}
