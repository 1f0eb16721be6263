package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/asaidimu/go-odm/core/persistence"
	"github.com/asaidimu/go-odm/core/query"
	"github.com/asaidimu/go-odm/core/schema"
	"github.com/asaidimu/go-odm/sqlite"
	"go.uber.org/zap"
)

const (
	dbFileName     = "user.db"
	userSchemaJSON = `{
		"name": "users",
		"version": "1.0.0",
		"description": "Schema for user profiles",
		"fields": {
			"email": {
				"name": "email",
				"type": "string",
				"required": true,
				"unique": true,
				"description": "Email address, used as the primary key"
			},
			"name": {
				"name": "name",
				"type": "string",
				"required": true,
				"description": "Full name of the user"
			},
			"age": {
				"name": "age",
				"type": "integer",
				"required": false,
				"description": "Age of the user (optional)"
			},
			"is_active": {
				"name": "is_active",
				"type": "boolean",
				"required": true,
				"description": "User account active status"
			}
		},
		"indexes": [
			{
				"name": "pk_user_email",
				"fields": ["email"],
				"type": "primary"
			}
		]
	}`
)

func main() {
	ctx := context.Background()

	// Remove the database file if it already exists to start fresh
	if err := os.Remove(dbFileName); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing database file %s: %v", dbFileName, err)
	}
	fmt.Printf("Starting fresh: removed existing %s (if any).\n", dbFileName)

	db, err := sql.Open("sqlite3", dbFileName)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			log.Printf("Error closing database connection: %v", cErr)
		}
		fmt.Println("Database connection closed.")
	}()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	userSchema, err := schema.FromJSON([]byte(userSchemaJSON))
	if err != nil {
		log.Fatalf("Failed to parse user schema: %v", err)
	}
	fmt.Printf("Loaded schema %q keyed by %q.\n", userSchema.Name, userSchema.PrimaryKey())

	driver := sqlite.NewDriver(db, userSchema.CollectionName(), userSchema.PrimaryKey(), logger, nil)
	if err := driver.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to create collection 'users': %v", err)
	}

	users, err := persistence.New(driver, userSchema, &persistence.Options{Logger: logger})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	users.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event: persistence.DocumentCreateSuccess,
		Callback: func(ctx context.Context, event persistence.StorageEvent) error {
			fmt.Printf("  [event] %s in %s\n", event.Type, event.Collection)
			return nil
		},
	})

	// Insert some users. The records do not carry the key; Insert adds it
	// to the stored copy only.
	fmt.Println("\nInserting users...")
	records := map[string]persistence.Document{
		"john@example.com":  {"name": "John Doe", "age": 30, "is_active": true},
		"jane@example.com":  {"name": "Jane Smith", "age": 25, "is_active": true},
		"bob.j@example.com": {"name": "Bob Johnson", "age": 40, "is_active": false},
	}
	for email, record := range records {
		if err := users.Insert(ctx, email, record); err != nil {
			log.Fatalf("Failed to insert %s: %v", email, err)
		}
	}
	if err := users.Insert(ctx, "jane@example.com", persistence.Document{"name": "Impostor"}); err != nil {
		fmt.Printf("Second insert of jane@example.com rejected: %v\n", err)
	}

	// Read one user back by key.
	jane, err := users.Get(ctx, "jane@example.com")
	if err != nil {
		log.Fatalf("Failed to get jane: %v", err)
	}
	fmt.Printf("\nGet jane@example.com -> %v\n", jane)

	// Query with a predicate sequence.
	builder := query.NewQueryBuilder().
		Where("age").Gte(26).
		Where("name").IContains("o")
	predicates := builder.Build()
	filter, err := users.Translator().Translate(predicates...)
	if err != nil {
		log.Fatalf("Failed to translate predicates: %v", err)
	}
	fmt.Printf("\nFilter for %s: %v\n", builder, filter)

	cursor, err := users.Find(ctx, predicates...)
	if err != nil {
		log.Fatalf("Failed to find users: %v", err)
	}
	found, err := persistence.All(ctx, cursor)
	if err != nil {
		log.Fatalf("Failed to read users: %v", err)
	}
	for _, doc := range found {
		fmt.Printf("  %v (%v)\n", doc["name"], doc["email"])
	}

	// Dots in the value are matched literally.
	cursor, err = users.Find(ctx, query.NewPredicate("email", query.OperatorStartsWith, "bob.j"))
	if err != nil {
		log.Fatalf("Failed to find bob: %v", err)
	}
	found, err = persistence.All(ctx, cursor)
	if err != nil {
		log.Fatalf("Failed to read bob: %v", err)
	}
	fmt.Printf("\nUsers whose email starts with \"bob.j\": %d\n", len(found))

	// Deactivate everyone older than 35.
	n, err := users.Modify(ctx,
		query.NewQueryBuilder().Where("age").Gt(35).Build(),
		query.NewUpdateBuilder().Set("is_active", false).Inc("age", 1).Build(),
	)
	if err != nil {
		log.Fatalf("Failed to modify users: %v", err)
	}
	fmt.Printf("\nModified %d user(s).\n", n)

	// Replace a user by key.
	if err := users.Update(ctx, "john@example.com", persistence.Document{"name": "John D.", "age": 31, "is_active": true}); err != nil {
		log.Fatalf("Failed to update john: %v", err)
	}

	removed, err := users.Remove(ctx, query.NewPredicate("is_active", query.OperatorEq, false))
	if err != nil {
		log.Fatalf("Failed to remove inactive users: %v", err)
	}
	fmt.Printf("Removed %d inactive user(s).\n", removed)

	cursor, err = users.FindAll(ctx)
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}
	remaining, err := persistence.All(ctx, cursor)
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}
	fmt.Printf("\n%d user(s) remain:\n", len(remaining))
	for _, doc := range remaining {
		fmt.Printf("  %v\n", doc)
	}
}
