// Package main provides a small tool to mint dashboard viewer tokens and to
// seal the upstream GateKeeper token with age.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/auth"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/secrets"
)

func main() {
	subject := flag.String("user", "viewer", "Viewer subject for the token")
	email := flag.String("email", "", "Viewer email for the token")
	secret := flag.String("secret", "", "JWT secret (or set DASHBOARD_JWT_SECRET env var)")
	expiry := flag.Duration("expiry", 30*24*time.Hour, "Token expiry duration")
	keygen := flag.Bool("keygen", false, "Generate an age key pair and exit")
	seal := flag.Bool("seal", false, "Seal the upstream token read from stdin for upstream.token_age")
	recipient := flag.String("recipient", "", "age recipient (public key) used with -seal")
	flag.Parse()

	switch {
	case *keygen:
		runKeygen()
	case *seal:
		runSeal(*recipient, os.Stdin)
	default:
		runViewerToken(*subject, *email, *secret, *expiry)
	}
}

func runViewerToken(subject, email, secret string, expiry time.Duration) {
	jwtSecret := secret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("DASHBOARD_JWT_SECRET")
	}
	if jwtSecret == "" {
		fail("JWT secret required. Use -secret flag or set DASHBOARD_JWT_SECRET env var")
	}
	if len(jwtSecret) < 32 {
		fail("JWT secret must be at least 32 characters")
	}

	svc := auth.NewService(&auth.Config{
		JWTSecret:   []byte(jwtSecret),
		TokenExpiry: expiry,
	}, nil)

	token, err := svc.GenerateToken(subject, email)
	if err != nil {
		fail(fmt.Sprintf("generating token: %v", err))
	}

	fmt.Println(token)
}

func runKeygen() {
	recipient, identity, err := secrets.GenerateKeyPair()
	if err != nil {
		fail(fmt.Sprintf("generating key pair: %v", err))
	}
	fmt.Printf("# public key: %s\n%s\n", recipient, identity)
}

func runSeal(recipient string, in io.Reader) {
	if recipient == "" {
		fail("-recipient is required with -seal")
	}

	svc, err := secrets.NewService(&secrets.Config{Recipient: recipient}, nil)
	if err != nil {
		fail(err.Error())
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		fail(fmt.Sprintf("reading token: %v", err))
	}
	token := strings.TrimSpace(line)
	if token == "" {
		fail("no token on stdin")
	}

	sealed, err := svc.Seal([]byte(token))
	if err != nil {
		fail(err.Error())
	}
	fmt.Print(sealed)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	os.Exit(1)
}
