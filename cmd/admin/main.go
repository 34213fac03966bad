package main

import (
	"fmt"
	"log"
	"os"

	"brandlink/backend/internal/config"
	"brandlink/backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	svc := storage.NewService(db)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: rooms | unread <user_id> | user <user_id>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "rooms":
		if err := listRooms(svc); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	case "unread":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unread <user_id>")
			os.Exit(1)
		}
		if err := showUnread(svc, os.Args[2]); err != nil {
			log.Fatalf("Error counting unread: %v", err)
		}
	case "user":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin user <user_id>")
			os.Exit(1)
		}
		if err := showUser(svc, os.Args[2]); err != nil {
			log.Fatalf("Error loading user: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func listRooms(svc storage.Storage) error {
	recs, err := svc.LoadRoomRecords()
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Printf("%s  %s <-> %s  last: %q\n",
			r.RoomKey, r.ParticipantAName, r.ParticipantBName, r.LastMessageText)
	}
	fmt.Printf("%d rooms total.\n", len(recs))
	return nil
}

func showUnread(svc storage.Storage, userID string) error {
	count, err := svc.CountUnread(userID)
	if err != nil {
		return err
	}
	fmt.Printf("User %s has %d unread messages.\n", userID, count)
	return nil
}

func showUser(svc storage.Storage, userID string) error {
	user, err := svc.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		fmt.Printf("User %s not found.\n", userID)
		return nil
	}
	fmt.Printf("%s  %s <%s>  role=%s  categories=%v\n",
		user.ID, user.DisplayName, user.Email, user.Role, []string(user.Categories))
	return nil
}
