package posgresql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"

	. "studentrecords/storage"
)

var Logger = slog.Default()

var _ Storage = (*PosgresqlStorage)(nil)

const StudentTable = "students"

var dialect = goqu.Dialect("postgres")

type PsqlConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Database   string
	Migrations string // источник миграций, например file://migrations
}

func (config *PsqlConfig) ConnInfo() string {
	return "postgres://" + config.Username + ":" + config.Password + "@" + config.Host + ":" + fmt.Sprint(config.Port) + "/" + config.Database + "?sslmode=disable"
}

// PosgresqlStorage - зеркало коллекции в таблице students
// Колонка position хранит порядок коллекции
type PosgresqlStorage struct {
	db *pgx.Conn
}

func migrating(pathMigrations string, connInfo string) error {
	m, err := migrate.New(
		pathMigrations,
		connInfo,
	)
	if err != nil {
		return fmt.Errorf("posgresql: migrate failed: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("posgresql: migrate failed: %w", err)
	}

	return nil
}

func NewPosgresqlStorage(config *PsqlConfig) (*PosgresqlStorage, error) {
	if config == nil {
		Logger.Info("posgresql: config is nil")
		return nil, errors.New("posgresql: config is nil")
	}

	Logger.Debug("posgresql: config", slog.String("host", config.Host), slog.Int("port", config.Port), slog.String("database", config.Database))

	db, err := pgx.Connect(context.Background(), config.ConnInfo())
	if err != nil {
		Logger.Info("posgresql: connection failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("posgresql: connection failed: %w", err)
	}

	migrations := config.Migrations
	if migrations == "" {
		migrations = "file://migrations"
	}
	if err := migrating(migrations, config.ConnInfo()); err != nil {
		Logger.Info("posgresql: migrating failed", slog.String("error", err.Error()))
		db.Close(context.Background())
		return nil, fmt.Errorf("posgresql: migrating failed: %w", err)
	}

	Logger.Info("posgresql: connected")

	return &PosgresqlStorage{
		db: db,
	}, nil
}

func (s *PosgresqlStorage) Close() error {
	Logger.Info("posgresql: closing")
	return s.db.Close(context.Background())
}

func selectQuery() (string, error) {
	query, _, err := dialect.From(StudentTable).
		Select("id", "name", "age", "course").
		Order(goqu.C("position").Asc()).
		ToSQL()
	return query, err
}

// insertQuery - строки вставляются с позицией в коллекции
func insertQuery(students []Student) (string, error) {
	rows := make([]any, 0, len(students))
	for i, st := range students {
		rows = append(rows, goqu.Record{
			"position": i,
			"id":       st.Id,
			"name":     st.Name,
			"age":      st.Age,
			"course":   st.Course,
		})
	}

	query, _, err := dialect.Insert(StudentTable).Rows(rows...).ToSQL()
	return query, err
}

func (s *PosgresqlStorage) Load() (*LoadResult, error) {
	Logger.Debug("posgresql: load")

	query, err := selectQuery()
	if err != nil {
		Logger.Info("posgresql: load failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("posgresql: load failed: %w", err)
	}

	Logger.Debug("posgresql: load", slog.String("query", query))

	rows, err := s.db.Query(context.Background(), query)
	if err != nil {
		Logger.Info("posgresql: load failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("posgresql: load failed: %w", err)
	}

	students, err := pgx.CollectRows(rows, pgx.RowToStructByName[Student])
	if err != nil {
		Logger.Info("posgresql: load failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("posgresql: load failed: %w", err)
	}
	if students == nil {
		students = []Student{}
	}

	Logger.Debug("posgresql: load success", slog.Int("count", len(students)))
	return &LoadResult{Students: students}, nil
}

// Save - удаление всех строк и вставка коллекции в одной транзакции
func (s *PosgresqlStorage) Save(students []Student) error {
	Logger.Debug("posgresql: save", slog.Int("count", len(students)))

	ctx := context.Background()

	deleteQuery, _, err := dialect.Delete(StudentTable).ToSQL()
	if err != nil {
		Logger.Info("posgresql: save failed", slog.String("error", err.Error()))
		return fmt.Errorf("posgresql: save failed: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		Logger.Info("posgresql: save failed", slog.String("error", err.Error()))
		return fmt.Errorf("posgresql: save failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteQuery); err != nil {
		Logger.Info("posgresql: save failed", slog.String("error", err.Error()))
		return fmt.Errorf("posgresql: save failed: %w", err)
	}

	if len(students) > 0 {
		insert, err := insertQuery(students)
		if err != nil {
			Logger.Info("posgresql: save failed", slog.String("error", err.Error()))
			return fmt.Errorf("posgresql: save failed: %w", err)
		}

		Logger.Debug("posgresql: save", slog.String("query", insert))

		if _, err := tx.Exec(ctx, insert); err != nil {
			Logger.Info("posgresql: save failed", slog.String("error", err.Error()))
			return fmt.Errorf("posgresql: save failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		Logger.Info("posgresql: save failed", slog.String("error", err.Error()))
		return fmt.Errorf("posgresql: save failed: %w", err)
	}

	Logger.Debug("posgresql: save success")
	return nil
}
