package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"modelstudio/studio/assistant"
	"modelstudio/studio/auth"
	"modelstudio/studio/schema"
	"modelstudio/studio/services"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

/**
 * ==========================================================================
 * ==== All variables used by the studio server must be loaded here.     ====
 * ==== This is to make the data flow clear so that a user can see what  ====
 * ==== variables are exposed, and how the values are propagated through ====
 * ==== the system.                                                      ====
 * ==========================================================================
 */
type studioEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
	JwtSecret   string `env:"JWT_SECRET,required"`

	AdminUsername string `env:"ADMIN_USERNAME,required"`
	AdminEmail    string `env:"ADMIN_MAIL,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	IdentityProvider      string `env:"IDENTITY_PROVIDER" envDefault:"basic"`
	KeycloakServerUrl     string `env:"KEYCLOAK_SERVER_URL"`
	KeycloakAdminUsername string `env:"KEYCLOAK_ADMIN_USER"`
	keycloakAdminPassword string

	PublicHostname string `env:"PUBLIC_HOSTNAME"`

	GenAiProvider string `env:"GENAI_PROVIDER"`
	GenAiKey      string `env:"GENAI_KEY"`
	GenAiModel    string `env:"GENAI_MODEL"`

	LogDir string `env:"LOG_DIR" envDefault:"logs"`
}

func loadEnv() studioEnv {
	cfg := studioEnv{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error loading env variables: %v", err)
	}
	// env/v10 skips unexported fields, so the password is read by hand to keep
	// it out of accidental struct dumps.
	cfg.keycloakAdminPassword = os.Getenv("KEYCLOAK_ADMIN_PASSWORD")

	if cfg.IdentityProvider == "keycloak" && (cfg.KeycloakServerUrl == "" || cfg.KeycloakAdminUsername == "" || cfg.keycloakAdminPassword == "") {
		log.Fatal("KEYCLOAK_SERVER_URL, KEYCLOAK_ADMIN_USER, and KEYCLOAK_ADMIN_PASSWORD must be specified when IDENTITY_PROVIDER is 'keycloak'")
	}

	return cfg
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func postgresDsn(uri string) string {
	parts, err := url.Parse(uri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(databaseUri string) *gorm.DB {
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(databaseUri, "sqlite://"); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(postgresDsn(databaseUri))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	if err := db.AutoMigrate(schema.Tables()...); err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	cfg := loadEnv()

	if err := os.MkdirAll(cfg.LogDir, 0777); err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "modelstudio.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(cfg.LogDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	db := initDb(cfg.DatabaseUri)

	auditLogger := auth.NewAuditLogger(auditLog, db)

	var identityProvider auth.IdentityProvider
	if cfg.IdentityProvider == "keycloak" {
		identityProvider, err = auth.NewKeycloakIdentityProvider(
			db,
			auditLogger,
			auth.KeycloakArgs{
				KeycloakServerUrl:     cfg.KeycloakServerUrl,
				KeycloakAdminUsername: cfg.KeycloakAdminUsername,
				KeycloakAdminPassword: cfg.keycloakAdminPassword,
				AdminUsername:         cfg.AdminUsername,
				AdminEmail:            cfg.AdminEmail,
				AdminPassword:         cfg.AdminPassword,
				PublicHostname:        cfg.PublicHostname,
			},
		)
		if err != nil {
			log.Fatalf("error creating keycloak identity provider: %v", err)
		}
	} else {
		identityProvider, err = auth.NewBasicIdentityProvider(
			db,
			auditLogger,
			auth.BasicProviderArgs{
				Secret:        []byte(cfg.JwtSecret),
				AdminUsername: cfg.AdminUsername,
				AdminEmail:    cfg.AdminEmail,
				AdminPassword: cfg.AdminPassword,
			},
		)
		if err != nil {
			log.Fatalf("error creating basic identity provider: %v", err)
		}
	}

	llm, err := assistant.NewProvider(cfg.GenAiProvider, cfg.GenAiKey, cfg.GenAiModel)
	if err != nil {
		log.Fatalf("error creating assistant provider: %v", err)
	}

	platform := services.NewPlatform(db, identityProvider, llm)

	go platform.PresenceSweep(time.Minute)

	allowedOrigins := []string{"*"}
	if cfg.PublicHostname != "" {
		allowedOrigins = []string{cfg.PublicHostname}
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Mount("/api/v1", platform.Routes())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
	platform.StopPresenceSweep()
}
