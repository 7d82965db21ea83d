// Package main provides dashctl, a terminal client for the dashboard server.
//
// Usage:
//
//	dashctl run
//	dashctl watch --interval 30s
//
// See --help for all available options.
package main

func main() {
	Execute()
}
