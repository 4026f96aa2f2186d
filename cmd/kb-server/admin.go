package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/marcus/kb/internal/api"
	"github.com/marcus/kb/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create-user":
		runAdminCreateUser(args[1:])
	case "create-key":
		runAdminCreateKey(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: kb-server admin <command> [flags]

Commands:
  create-user  Create a user
  create-key   Create an API key for a user`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		dbPath = api.LoadConfig().ServerDBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fatalf("open database: %v", err)
	}
	return store
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func runAdminCreateUser(args []string) {
	fs := flag.NewFlagSet("admin create-user", flag.ExitOnError)
	email := fs.String("email", "", "user email address")
	dbPath := fs.String("db", "", "path to server.db (default: from KB_SERVER_DB_PATH)")
	fs.Parse(args)

	if *email == "" {
		fs.Usage()
		fatalf("--email is required")
	}

	store := openDB(*dbPath)
	defer store.Close()

	existing, err := store.GetUserByEmail(*email)
	if err != nil {
		fatalf("%v", err)
	}
	if existing != nil {
		fatalf("user already exists: %s (%s)", existing.Email, existing.ID)
	}

	u, err := store.CreateUser(*email)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("created user %s (%s)\n", u.Email, u.ID)
}

func runAdminCreateKey(args []string) {
	fs := flag.NewFlagSet("admin create-key", flag.ExitOnError)
	email := fs.String("email", "", "user email address")
	name := fs.String("name", "cli", "key name")
	ttl := fs.Duration("ttl", 0, "key lifetime, e.g. 720h (default: no expiry)")
	dbPath := fs.String("db", "", "path to server.db (default: from KB_SERVER_DB_PATH)")
	fs.Parse(args)

	if *email == "" {
		fs.Usage()
		fatalf("--email is required")
	}

	store := openDB(*dbPath)
	defer store.Close()

	user, err := store.GetUserByEmail(*email)
	if err != nil {
		fatalf("%v", err)
	}
	if user == nil {
		fatalf("user not found: %s (run: kb-server admin create-user --email %s)", *email, *email)
	}

	var expiresAt *time.Time
	if *ttl > 0 {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	plaintext, ak, err := store.GenerateAPIKey(user.ID, *name, expiresAt)
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("created API key for %s\n", user.Email)
	fmt.Printf("  name: %s\n", ak.Name)
	if ak.ExpiresAt != nil {
		fmt.Printf("  expires: %s\n", ak.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("  key:  %s\n", plaintext)
	fmt.Println("\nSave this key now -- it will not be shown again.")
	fmt.Println("Then run: kb config set api_key <key>")
}
