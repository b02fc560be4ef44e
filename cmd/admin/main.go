package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"chatgogo/minichat/internal/config"
	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <register|exists|delete> <username> [password]")
		os.Exit(1)
	}

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := storage.MigrateServer(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	users := storage.NewStorageService(db)

	command := os.Args[1]

	switch command {
	case "register":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin register <username> <password>")
			os.Exit(1)
		}
		if err := registerUser(users, os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("Error registering user: %v", err)
		}
		fmt.Printf("User %s has been registered.\n", os.Args[2])
	case "exists":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin exists <username>")
			os.Exit(1)
		}
		exists, err := users.UserExists(os.Args[2])
		if err != nil {
			log.Fatalf("Error looking up user: %v", err)
		}
		fmt.Println(exists)
	case "delete":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin delete <username>")
			os.Exit(1)
		}
		if err := users.DeleteUser(os.Args[2]); err != nil {
			log.Fatalf("Error deleting user: %v", err)
		}
		fmt.Printf("User %s has been deleted.\n", os.Args[2])
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func registerUser(users storage.UserStore, username, password string) error {
	if !models.ValidUsername(username) {
		return fmt.Errorf("username %q must not contain %q", username, models.PrivateRoomSeparator)
	}
	err := users.CreateUser(username, password)
	if errors.Is(err, storage.ErrUsernameTaken) {
		return fmt.Errorf("%s is already registered", username)
	}
	return err
}
