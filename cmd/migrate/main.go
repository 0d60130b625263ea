package main

import (
	"flag"
	"log"

	"github.com/studyshare/studyshare-backend/internal/config"
	"github.com/studyshare/studyshare-backend/internal/database"
	"github.com/studyshare/studyshare-backend/internal/migration"
	"gorm.io/gorm"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "config file path (default configs/config.<APP_ENV>.yaml)")
	withUsers := flag.Bool("with-users", false, "also create the users table (local sqlite setups)")
	dryRun := flag.Bool("dry-run", false, "show what would be migrated without executing")
	verify := flag.Bool("verify", false, "print row counts of the migrated tables")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	if loaded := config.LoadDotEnv(); len(loaded) == 0 {
		log.Println("No .env file found, using environment variables")
	}

	path := *configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Database.LogSQL = *verbose

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if *dryRun {
		for _, name := range tableNames(db) {
			log.Printf("[dry-run] Would migrate: %s", name)
		}
		return
	}

	if *verify {
		runVerify(db)
		return
	}

	if *withUsers {
		if err := migration.RunUsers(db); err != nil {
			log.Fatalf("Failed to migrate users: %v", err)
		}
	}
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migration completed (%s)", cfg.Database.Driver)
}

func tableNames(db *gorm.DB) []string {
	models := migration.Models()
	names := make([]string, 0, len(models))
	for _, m := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			log.Printf("parse %T: %v", m, err)
			continue
		}
		names = append(names, stmt.Schema.Table)
	}
	return names
}

func runVerify(db *gorm.DB) {
	for _, name := range tableNames(db) {
		if !db.Migrator().HasTable(name) {
			log.Printf("[verify] %-22s missing", name)
			continue
		}
		var count int64
		if err := db.Table(name).Count(&count).Error; err != nil {
			log.Printf("[verify] %-22s error: %v", name, err)
			continue
		}
		log.Printf("[verify] %-22s %d rows", name, count)
	}
}
