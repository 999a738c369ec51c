package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/datashare/internal/auth"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with an admin and a standard user for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"project_users", "project_data", "project_columns", "projects", "users"} {
				if _, err := db.Exec("DELETE FROM " + table); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		hash, err := auth.HashPassword("password", cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		users := []struct {
			Email string
			Name  string
			Role  string
		}{
			{"padil@mail.com", "Padil Admin", "admin"},
			{"fadhil@mail.com", "Fadhil", "user"},
		}

		for _, u := range users {
			var exists int
			if err := db.Get(&exists, "SELECT 1 FROM users WHERE email = $1", u.Email); err == nil {
				fmt.Printf("%s already exists; skipping\n", u.Email)
				continue
			}

			if _, err := db.Exec("INSERT INTO users (email, name, password_hash, role, created_at, updated_at) VALUES ($1, $2, $3, $4, now(), now())",
				u.Email, u.Name, hash, u.Role); err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Printf("Seeded %s user: %s\n", u.Role, u.Email)
		}

		var projectID int64
		err = db.Get(&projectID, "SELECT id FROM projects WHERE name = $1", "Sample Sales")
		if err != nil {
			if err := db.QueryRowx(
				"INSERT INTO projects (name, description, created_by, is_public, data_source, category, tags, created_at, updated_at) VALUES ($1, $2, (SELECT id::text FROM users WHERE email = $3), false, 'csv', 'sales', '[\"sample\"]', now(), now()) RETURNING id",
				"Sample Sales", "Seeded project; upload a file to populate it", "padil@mail.com",
			).Scan(&projectID); err != nil {
				log.Fatalf("failed to insert sample project: %v", err)
			}
			fmt.Println("Seeded project: Sample Sales")
		}

		if _, err := db.Exec(
			"INSERT INTO project_users (project_id, user_id, email, role, created_at) SELECT $1, id, email, 'viewer', now() FROM users WHERE email = $2 AND NOT EXISTS (SELECT 1 FROM project_users WHERE project_id = $1 AND email = $2)",
			projectID, "fadhil@mail.com",
		); err != nil {
			log.Fatalf("failed to assign sample user: %v", err)
		}

		fmt.Println("Assigned fadhil@mail.com as viewer of Sample Sales")
	},
}
