// Package utils provides logging, validation and file helpers shared by all
// pipeline modules.
package utils

import (
	"fmt"
	"os"
	"strings"
)

// LogLevel represents the level of logging verbosity
type LogLevel int

const (
	// LevelQuiet suppresses all output except errors
	LevelQuiet LogLevel = iota
	// LevelNormal shows standard pipeline progress
	LevelNormal
	// LevelVerbose shows detailed information about each stage
	LevelVerbose
	// LevelDebug shows all debugging information
	LevelDebug
)

// Terminal color codes using ANSI escape sequences
const (
	resetColor  = "\033[0m"
	redColor    = "\033[31m"
	greenColor  = "\033[32m"
	yellowColor = "\033[33m"
	blueColor   = "\033[34m"
	cyanColor   = "\033[36m"
)

// CurrentLogLevel is the global log level setting
var CurrentLogLevel = LevelNormal

// SetLogLevel sets the global logging level
func SetLogLevel(level LogLevel) {
	CurrentLogLevel = level
}

// LogLevelFromString converts a string level name to LogLevel
func LogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "quiet", "q":
		return LevelQuiet
	case "normal", "n":
		return LevelNormal
	case "verbose", "v":
		return LevelVerbose
	case "debug", "d":
		return LevelDebug
	default:
		return LevelNormal
	}
}

func colored(color, format string, args ...interface{}) string {
	return color + fmt.Sprintf(format, args...) + resetColor
}

// LogError logs an error message (always shown)
func LogError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s\n", colored(redColor, format, args...))
}

// LogInfo logs an informational message at Normal+ level
func LogInfo(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelNormal {
		fmt.Printf("%s\n", colored(blueColor, format, args...))
	}
}

// LogSuccess logs a success message at Normal+ level
func LogSuccess(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelNormal {
		fmt.Printf("%s\n", colored(greenColor, format, args...))
	}
}

// LogWarning logs a warning message at Normal+ level
func LogWarning(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelNormal {
		fmt.Printf("%s\n", colored(yellowColor, format, args...))
	}
}

// LogVerbose logs a message at Verbose+ level
func LogVerbose(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelVerbose {
		fmt.Printf("\t%s\n", colored(blueColor, format, args...))
	}
}

// LogDebug logs a debug message at Debug level
func LogDebug(format string, args ...interface{}) {
	if CurrentLogLevel >= LevelDebug {
		fmt.Printf("\t%s\n", colored(cyanColor, format, args...))
	}
}
