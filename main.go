package main

import (
	"fmt"
	"os"

	"github.com/dubflow/dubflow/cmd"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found - using environment variables")
	} else {
		fmt.Println("Loaded environment variables from .env file")
	}
}

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
