package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-authgate/idgate/internal/bootstrap"
	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/credential"
	"github.com/go-authgate/idgate/internal/metrics"
	"github.com/go-authgate/idgate/internal/passwordhash"
	"github.com/go-authgate/idgate/internal/store"
	"github.com/go-authgate/idgate/internal/version"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	case "hash":
		runHash(args[1:])
	case "verify":
		runVerify(args[1:])
	case "validate":
		runValidate(args[1:])
	case "useradd":
		runUserAdd(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Caller authentication against pluggable identity stores")
	fmt.Println("\nCommands:")
	fmt.Println("  server     Start the demo login server")
	fmt.Println("  hash       Print a password hash using the configured parameters")
	fmt.Println("  verify     Check a password against an encoded hash")
	fmt.Println("  validate   Validate a caller against the configured identity stores")
	fmt.Println("  useradd    Add a caller to the built-in database schema")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

// loadConfig loads and validates the configuration
func loadConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func runServer() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx, cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runHash(args []string) {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	password := fs.String("p", "", "Password to hash (read from IDGATE_PASSWORD when empty)")
	_ = fs.Parse(args)

	pw := *password
	if pw == "" {
		pw = os.Getenv("IDGATE_PASSWORD")
	}
	if pw == "" {
		log.Fatal("A password is required (-p or IDGATE_PASSWORD)")
	}

	hash, err := bootstrap.NewPasswordHash(config.Load())
	if err != nil {
		log.Fatalf("Invalid password hash configuration: %v", err)
	}
	encoded, err := hash.Generate([]byte(pw))
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(encoded)
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	password := fs.String("p", "", "Password to check")
	encoded := fs.String("H", "", "Encoded hash")
	algorithm := fs.String("a", "pbkdf2", "Hash algorithm: pbkdf2 or bcrypt")
	_ = fs.Parse(args)

	if *encoded == "" {
		log.Fatal("An encoded hash is required (-H)")
	}

	hash, err := passwordhash.New(*algorithm, nil)
	if err != nil {
		log.Fatalf("Invalid algorithm: %v", err)
	}
	if _, ok := hash.(*passwordhash.Pbkdf2); ok {
		if _, err := passwordhash.Parse(*encoded); err != nil {
			log.Fatalf("Invalid hash: %v", err)
		}
	}
	if !hash.Verify([]byte(*password), *encoded) {
		fmt.Println("mismatch")
		os.Exit(1)
	}
	fmt.Println("match")
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	name := fs.String("u", "", "Caller name")
	password := fs.String("p", "", "Password")
	_ = fs.Parse(args)

	cfg := loadConfig()
	ctx := context.Background()

	db, err := openDatabaseIfNeeded(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if db != nil {
		defer db.Close()
	}

	h, err := bootstrap.NewIdentityHandler(cfg, db, nil, metrics.NewNoopMetrics())
	if err != nil {
		log.Fatalf("Failed to initialize identity stores: %v", err)
	}

	result, err := h.Validate(ctx, credential.UsernamePassword{Name: *name, Password: *password})
	if err != nil {
		log.Fatalf("Validation failed: %v", err)
	}

	fmt.Printf("status: %s\n", result.Status())
	if result.CallerName() != "" {
		fmt.Printf("caller: %s\n", result.CallerName())
		fmt.Printf("store:  %s\n", result.StoreID())
		fmt.Printf("groups: %s\n", strings.Join(result.Groups(), ","))
	}
}

func runUserAdd(args []string) {
	fs := flag.NewFlagSet("useradd", flag.ExitOnError)
	name := fs.String("u", "", "Caller name")
	password := fs.String("p", "", "Password")
	groups := fs.String("g", "", "Comma separated groups")
	_ = fs.Parse(args)

	if *name == "" || *password == "" {
		log.Fatal("Both -u and -p are required")
	}

	cfg := config.Load()
	hash, err := bootstrap.NewPasswordHash(cfg)
	if err != nil {
		log.Fatalf("Invalid password hash configuration: %v", err)
	}
	encoded, err := hash.Generate([]byte(*password))
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	db, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var groupList []string
	for _, g := range strings.Split(*groups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groupList = append(groupList, g)
		}
	}

	caller, err := db.CreateCaller(context.Background(), *name, encoded, groupList)
	if err != nil {
		log.Fatalf("Failed to add caller: %v", err)
	}
	fmt.Printf("Added caller %s (%s) groups=%s\n", caller.Name, caller.ID, strings.Join(groupList, ","))
}

func openDatabaseIfNeeded(cfg *config.Config) (*store.Store, error) {
	if !cfg.HasStore(config.StoreDatabase) {
		return nil, nil //nolint:nilnil // the database store is not enabled
	}
	return bootstrap.OpenDatabase(cfg)
}
