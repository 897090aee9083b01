// Package main is the entry point for the Hermes admin CLI. It operates
// on the user store directly, bypassing the network interfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/config"
	"github.com/prn-tf/hermes-users/internal/domain"
	"github.com/prn-tf/hermes-users/internal/pkg/crypto"
	"github.com/prn-tf/hermes-users/internal/repository"
	"github.com/prn-tf/hermes-users/internal/repository/postgres"
	"github.com/prn-tf/hermes-users/internal/repository/sqlite"
	"github.com/prn-tf/hermes-users/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Hermes Users Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		if err := runUserCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runUserCommand(args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("user subcommand required")
	}

	subcommand := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, closeFn, err := newUserService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	switch subcommand {
	case "create":
		return createUser(ctx, users, args[1:])
	case "list":
		return listUsers(ctx, users)
	case "get":
		return getUser(ctx, users, args[1:])
	case "deactivate":
		id, err := parseIDArg(args[1:])
		if err != nil {
			return err
		}
		if err := users.SoftDelete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("User %d deactivated\n", id)
		return nil
	case "delete":
		id, err := parseIDArg(args[1:])
		if err != nil {
			return err
		}
		if err := users.HardDelete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("User %d deleted\n", id)
		return nil
	default:
		return fmt.Errorf("unknown user subcommand: %s", subcommand)
	}
}

func createUser(ctx context.Context, users *service.UserService, args []string) error {
	fs := flag.NewFlagSet("user create", flag.ContinueOnError)
	email := fs.String("email", "", "email address (required)")
	username := fs.String("username", "", "username (required)")
	password := fs.String("password", "", "password (required)")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := service.CreateUserInput{
		Email:    *email,
		Username: *username,
		Password: *password,
	}
	if *firstName != "" {
		input.FirstName = firstName
	}
	if *lastName != "" {
		input.LastName = lastName
	}

	user, err := users.Create(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("User created with ID %d\n", user.ID)
	return nil
}

func listUsers(ctx context.Context, users *service.UserService) error {
	list, err := users.ListActive(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tUSERNAME\tNAME\tCREATED")
	for _, u := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			u.ID, u.Email, u.Username, fullName(u), u.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func getUser(ctx context.Context, users *service.UserService, args []string) error {
	fs := flag.NewFlagSet("user get", flag.ContinueOnError)
	email := fs.String("email", "", "look up by email")
	username := fs.String("username", "", "look up by username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var user *domain.User
	var err error
	switch {
	case *email != "":
		user, err = users.GetByEmail(ctx, *email)
	case *username != "":
		user, err = users.GetByUsername(ctx, *username)
	case fs.NArg() > 0:
		var id int64
		id, err = strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id: %s", fs.Arg(0))
		}
		user, err = users.GetByID(ctx, id)
	default:
		return fmt.Errorf("user id, --email or --username required")
	}
	if err != nil {
		return err
	}

	fmt.Printf("ID:        %d\n", user.ID)
	fmt.Printf("Email:     %s\n", user.Email)
	fmt.Printf("Username:  %s\n", user.Username)
	fmt.Printf("Name:      %s\n", fullName(user))
	fmt.Printf("Active:    %t\n", user.IsActive)
	fmt.Printf("Created:   %s\n", user.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:   %s\n", user.UpdatedAt.Format(time.RFC3339))
	return nil
}

func fullName(u *domain.User) string {
	first, last := "", ""
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}

func parseIDArg(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("user id required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %s", args[0])
	}
	return id, nil
}

// newUserService builds a UserService against the configured database.
// The admin tool never goes through the cache layer, so reads here
// always reflect the store.
func newUserService(ctx context.Context) (*service.UserService, func(), error) {
	cfg, err := config.Load(os.Getenv("HERMES_CONFIG"))
	if err != nil {
		return nil, nil, err
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	var repo repository.UserRepository
	var closeFn func()

	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			ConnMaxLifetime: time.Hour,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		repo = sqlite.NewUserRepository(db)
		closeFn = func() { _ = db.Close() }
	} else {
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		repo = postgres.NewUserRepository(db)
		closeFn = func() { _ = db.Close() }
	}

	return service.NewUserService(repo, crypto.NewBcryptHasher(0), logger), closeFn, nil
}

func printUsage() {
	fmt.Println(`Hermes Users Admin CLI

Usage:
  hermes-admin <command> [arguments]

Commands:
  user create      Create a user (--email, --username, --password, --first-name, --last-name)
  user list        List active users
  user get         Show a user by id, --email or --username
  user deactivate  Soft-delete a user by id
  user delete      Permanently delete a user by id
  version          Print version information
  help             Show this help message

Environment Variables:
  HERMES_CONFIG   Path to the configuration file (optional)

Examples:
  hermes-admin user create --email admin@example.com --username admin --password secret
  hermes-admin user list
  hermes-admin user get --email admin@example.com
  hermes-admin user deactivate 42`)
}
