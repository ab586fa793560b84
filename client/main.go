package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JRI98/incognitostickers/client/database"
	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/config"
	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/JRI98/incognitostickers/internal/secretbox"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func readPassword() ([]byte, error) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}

func newRootCommand() *cobra.Command {
	var databasePath string
	var serverURL string

	cmd := &cobra.Command{
		Use:          "incognitostickers",
		Short:        "Send stickers over end-to-end encrypted secret chats",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if cmd.Flags().Changed("db") {
				cfg.Client.Database = databasePath
			}
			if cmd.Flags().Changed("server") {
				cfg.Client.ServerURL = serverURL
			}

			return run(cmd.Context(), cfg.Client)
		},
	}

	cmd.Flags().StringVar(&databasePath, "db", "database.db", "Path to the database file")
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "Base URL of the server")

	return cmd
}

func run(ctx context.Context, cfg config.ClientConfig) error {
	clearScreen()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := unlock(ctx, db); err != nil {
		return err
	}

	stdin := bufio.NewReader(os.Stdin)

	program := &Program{
		database: db,
		stdin:    stdin,
		context:  ctx,
	}

	account, err := program.loadAccount(cfg.ServerURL)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	program.account = account
	program.api = api.NewClient(cfg.ServerURL, account.PrivateIdentityKey, nil)

	err = program.mainScreen()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("main screen error: %w", err)
	}
	return nil
}

// unlock derives the database key from the password, creating the password
// salt on first use.
func unlock(ctx context.Context, db *database.Database) error {
	passwordSalt, err := db.GetPassword(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		passwordSalt, err = secretbox.NewSalt()
		if err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}

		err = db.CreatePassword(ctx, passwordSalt)
		if err != nil {
			return fmt.Errorf("failed to create password: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to get password: %w", err)
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	databaseEncryptionKey, err := secretbox.DeriveKey(password, passwordSalt)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return db.SetEncryptionKey(databaseEncryptionKey)
}

// loadAccount returns the stored account, or creates and registers a new one
// so the user shows up in other people's peer search.
func (program *Program) loadAccount(serverURL string) (database.Account, error) {
	account, err := program.database.GetAccount(program.context)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return database.Account{}, fmt.Errorf("failed to unlock account (wrong password?): %w", err)
	}

	fmt.Print("Name: ")
	name, err := program.readInput()
	if err != nil {
		return database.Account{}, err
	}

	_, privateIdentityKey, err := identity.Generate()
	if err != nil {
		return database.Account{}, fmt.Errorf("failed to generate keys: %w", err)
	}

	err = api.NewClient(serverURL, privateIdentityKey, nil).Register(program.context, api.RegisterData{
		Name:               name,
		PublicIdentityKeys: [][]byte{},
	})
	if err != nil {
		return database.Account{}, fmt.Errorf("failed to register: %w", err)
	}

	account = database.Account{PrivateIdentityKey: privateIdentityKey, Name: name}
	if err := program.database.CreateAccount(program.context, account); err != nil {
		return database.Account{}, err
	}
	return account, nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
