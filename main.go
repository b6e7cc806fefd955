package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/swaggo/swag"

	_ "studentrecords/docs"
	"studentrecords/flatfile"
	"studentrecords/posgresql"
	"studentrecords/storage"
	"studentrecords/students"
)

var Logger = slog.Default()

func main() {
	Logger.Debug("Starting student records service")

	config, err := loadConfig(".env")
	if err != nil {
		Logger.Error("load config failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(config.LogLevel)

	Logger.Debug("New storage", slog.String("storage", config.Storage))
	store, closer, err := openStorage(config)
	if err != nil {
		Logger.Error("new storage failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	app, err := students.NewStudentService(store, students.WithSavePolicy(config.SavePolicy))
	if err != nil {
		Logger.Error("new student service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	Logger.Debug("Setup handlers")
	fiberApp := newServer(app)

	Logger.Info("Starting server", slog.String("listen", config.Listen))
	if err := fiberApp.Listen(config.Listen); err != nil {
		Logger.Error("fiber listen failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	Logger.Debug("Server stopped")
}

// openStorage - хранилище по конфигурации, closer может быть nil
func openStorage(config *Config) (storage.Storage, io.Closer, error) {
	if config.Storage == StoragePostgres {
		db, err := posgresql.NewPosgresqlStorage(config.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	}

	fs, err := flatfile.NewFileStorage(config.File)
	if err != nil {
		return nil, nil, err
	}
	return fs, nil, nil
}

func newServer(app *students.StudentService) *fiber.App {
	fiberApp := fiber.New()
	groupStudents := fiberApp.Group("/")

	app.SetupHandlers(groupStudents)

	fiberApp.Get("/swagger/doc.json", func(c fiber.Ctx) error {
		doc, err := swag.ReadDoc()
		if err != nil {
			Logger.Info("read swagger doc failed", slog.String("error", err.Error()))
			return fiber.ErrInternalServerError
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(doc)
	})

	return fiberApp
}
