package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
)

func main() {
	// Migrationen laufen mit denselben DB-Zugangsdaten wie der Server
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	m, err := migrate.New(sourceURL(), databaseURL())
	if err != nil {
		log.Fatalf("Migration konnte nicht initialisiert werden: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Fehler beim Schließen der Migrationsressourcen: %v, %v", sourceErr, dbErr)
		}
	}()

	switch os.Args[1] {
	case "up":
		// Alle ausstehenden Migrationen anwenden
		err := m.Up()
		switch err {
		case nil:
			log.Println("Migrationen erfolgreich ausgeführt")
		case migrate.ErrNoChange:
			log.Println("Datenbank ist bereits auf dem neuesten Stand")
		default:
			log.Fatalf("Migration fehlgeschlagen: %v", err)
		}

	case "down":
		// Nur die letzte Migration zurückrollen
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Rollback fehlgeschlagen: %v", err)
		}
		log.Println("Letzte Migration zurückgerollt")

	case "goto":
		version := versionArg()
		err := m.Migrate(uint(version))
		switch err {
		case nil:
			log.Printf("Auf Version %d migriert", version)
		case migrate.ErrNoChange:
			log.Printf("Datenbank ist bereits auf Version %d", version)
		default:
			log.Fatalf("Migration auf Version %d fehlgeschlagen: %v", version, err)
		}

	case "force":
		// Dirty-Flag nach einer abgebrochenen Migration zurücksetzen
		version := versionArg()
		if err := m.Force(version); err != nil {
			log.Fatalf("Force auf Version %d fehlgeschlagen: %v", version, err)
		}
		log.Printf("Version %d gesetzt, Dirty-Flag entfernt", version)

	case "status":
		version, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			log.Println("Noch keine Migration ausgeführt")
			return
		}
		if err != nil {
			log.Fatalf("Version konnte nicht gelesen werden: %v", err)
		}
		suffix := ""
		if dirty {
			suffix = " (dirty)"
		}
		log.Printf("Aktuelle Migrationsversion: %d%s", version, suffix)

	default:
		printUsage()
		os.Exit(1)
	}
}

// databaseURL baut die golang-migrate MySQL-URL aus der Umgebung
func databaseURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "flohmarkt"),
		env.GetEnv("DB_PASSWORD", "flohmarkt"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "flohmarkt_db"),
	)
}

func sourceURL() string {
	return "file://" + env.GetEnv("MIGRATIONS_PATH", "migrations")
}

func versionArg() int {
	if len(os.Args) < 3 {
		log.Fatalf("Bitte eine Versionsnummer angeben")
	}
	version, err := strconv.Atoi(os.Args[2])
	if err != nil || version < 0 {
		log.Fatalf("Ungültige Versionsnummer: %s", os.Args[2])
	}
	return version
}

func printUsage() {
	fmt.Println("Verwendung: go run cmd/migrate/main.go [command]")
	fmt.Println("Verfügbare Befehle:")
	fmt.Println("  up      - Führe alle ausstehenden Migrationen aus")
	fmt.Println("  down    - Rolle die letzte Migration zurück")
	fmt.Println("  goto N  - Migriere zur Version N")
	fmt.Println("  force N - Setze Version N und entferne das Dirty-Flag")
	fmt.Println("  status  - Zeige aktuelle Migrationsversion an")
}
