package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"ticketdesk/internal/auth"
)

// Prints the bcrypt hash to put in consolePasswordHash or
// TICKETDESK_CONSOLE_PASSWORD_HASH. The password is read from stdin.
func main() {
	user := flag.String("user", "operator", "Console username the hash is for")
	flag.Parse()

	fmt.Fprintf(os.Stderr, "Password for %s: ", *user)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		os.Exit(1)
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
