// lmsctl — операторская утилита: миграции и создание учётных записей
// (единственный способ завести администратора).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/Spok95/school-lms/internal/config"
	"github.com/Spok95/school-lms/internal/db"
	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

const usage = `usage:
  lmsctl migrate <up|down|status|version|redo|reset>
  lmsctl adduser -email EMAIL -name NAME -role student|professor|admin`

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "lmsctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cfg, err := config.LoadDB()
	if err != nil {
		return err
	}
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	switch args[0] {
	case "migrate":
		if len(args) < 2 {
			return errors.New(usage)
		}
		return db.Migrate(ctx, database, args[1], args[2:]...)
	case "adduser":
		return addUser(ctx, workflow.New(db.NewStore(database)), args[1:])
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func addUser(ctx context.Context, eng *workflow.Engine, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	email := fs.String("email", "", "login email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", string(models.Student), "student, professor or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := readPassword()
	if err != nil {
		return err
	}
	u, err := eng.CreateUser(ctx, workflow.NewUser{
		Email:           *email,
		Name:            *name,
		Password:        pw,
		PasswordConfirm: pw,
		Role:            models.Role(strings.ToLower(*role)),
	})
	if err != nil {
		return err
	}
	fmt.Printf("created %s %s (id %d)\n", u.Role, u.Email, u.ID)
	return nil
}

// readPassword — LMSCTL_PASSWORD или ввод с терминала без эха.
func readPassword() (string, error) {
	if pw := os.Getenv("LMSCTL_PASSWORD"); pw != "" {
		return pw, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("set LMSCTL_PASSWORD or run from a terminal")
	}
	fmt.Fprint(os.Stderr, "password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "repeat: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
