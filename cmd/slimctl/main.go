// main.go - Admin control tool for Slimmers
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"slimmers/internal"
	"slimmers/internal/access"
	"slimmers/internal/config"
	"slimmers/internal/equipment"
	"slimmers/internal/events"
	"slimmers/internal/seeder"
	"slimmers/internal/users"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	// Execute runs the command with the given app and args. app is nil for
	// commands that do not need the database.
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&CreateAdminUserCommand{},
	&GrantRoleCommand{},
	&ChangePasswordCommand{},
	&MigrateCommand{},
	&SeedCommand{},
	&QRLinksCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

// offline lists commands that run without opening the database.
var offline = map[string]bool{"qr-links": true, "help": true}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if !offline[cmd.Name()] {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}()
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// readPassword prompts twice on the terminal without echo.
func readPassword() (string, error) {
	fmt.Print("Enter password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("password cannot be empty")
	}
	return string(first), nil
}

// CreateAdminUserCommand creates a super admin account.
type CreateAdminUserCommand struct{}

func (c *CreateAdminUserCommand) Name() string { return "create-admin-user" }
func (c *CreateAdminUserCommand) Description() string {
	return "Creates a super admin user: <email> [password]"
}

func (c *CreateAdminUserCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <email> [password]", c.Name())
	}
	email := args[0]

	password := ""
	if len(args) >= 2 {
		password = args[1]
	} else {
		var err error
		if password, err = readPassword(); err != nil {
			return err
		}
	}

	log.Printf("Setting up admin user with email: %s", email)
	_, err := users.CreateUser(app.DBManager.GetConnection(), "Admin", email, password, access.RoleSuperAdmin)
	if errors.Is(err, users.ErrUserExists) {
		log.Printf("User %s already exists, use grant-role to promote it", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GrantRoleCommand changes the role of an existing user.
type GrantRoleCommand struct{}

func (c *GrantRoleCommand) Name() string { return "grant-role" }
func (c *GrantRoleCommand) Description() string {
	return "Sets a user's role: <email> <member|super_admin>"
}

func (c *GrantRoleCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <email> <role>", c.Name())
	}
	if err := users.SetRole(app.DBManager.GetConnection(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	fmt.Printf("%s is now %s\n", args[0], args[1])
	return nil
}

// ChangePasswordCommand implements password update for an existing user
type ChangePasswordCommand struct{}

func (c *ChangePasswordCommand) Name() string { return "change-password" }
func (c *ChangePasswordCommand) Description() string {
	return "Changes the password of a user: <email>"
}

func (c *ChangePasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <email>", c.Name())
	}
	db := app.DBManager.GetConnection()

	if _, err := users.FindByEmail(db, args[0]); err != nil {
		return fmt.Errorf("user lookup failed: %w", err)
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if err := users.ChangePassword(db, args[0], password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Println("Password updated successfully")
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with demo traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with demo visits and scans" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	sessions := fs.Int("sessions", 2000, "number of visitor sessions to generate")
	days := fs.Int("days", 40, "how many days back the sessions spread")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s := seeder.NewSeeder(app.DBManager, slog.Default(), *sessions, *seed)
	s.Days = *days
	s.QRTag = config.GetConfig().QRAcquisitionTag

	written, err := s.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d events\n", written)
	return nil
}

// QRLinksCommand prints the link each station's QR code should encode.
type QRLinksCommand struct{}

func (c *QRLinksCommand) Name() string        { return "qr-links" }
func (c *QRLinksCommand) Description() string { return "Prints the QR code target of every station" }

func (c *QRLinksCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := config.GetConfig()
	catalog, err := equipment.Default()
	if err != nil {
		return err
	}

	for _, station := range catalog.List() {
		link, err := station.QRTarget(cfg.PublicBaseURL, cfg.QRAcquisitionTag)
		if err != nil {
			return err
		}
		fmt.Printf("%-22s %-12s %s\n", station.QRCode, station.Name, link)
	}
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()

	var userCount, eventCount, scanCount int64
	if err := db.Model(&users.User{}).Count(&userCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&events.Event{}).Count(&eventCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&events.Event{}).Where("kind = ?", events.KindQRScan).Count(&scanCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Users: %d", userCount)
	log.Printf("- Events: %d (%d scans)", eventCount, scanCount)
	log.Printf("- Retention: %d days (0 keeps everything)", config.GetConfig().EventRetentionDays)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: slimctl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
