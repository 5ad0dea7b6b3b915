package commands

import (
	"github.com/fatih/color"
)

// Colors are disabled automatically when stdout is not a terminal.
var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	boldColor    = color.New(color.Bold)
)
