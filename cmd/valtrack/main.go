package main

import (
	"github.com/xrplwatch/valtrack/cli"
)

// AppName is the application name
var AppName = "valtrack"

// Version is the app version
var Version = "latest"

func main() {
	cli.Execute(AppName, Version)
}
