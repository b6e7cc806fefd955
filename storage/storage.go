package storage

import (
	"errors"
	"fmt"
)

// Student - запись о студенте
type Student struct {
	Id     int    `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Age    int    `json:"age" db:"age"`
	Course string `json:"course" db:"course"`
}

// LoadResult - результат загрузки коллекции
type LoadResult struct {
	Students []Student
	Skipped  int // количество отброшенных строк
}

// RowPolicy - поведение при некорректной строке
type RowPolicy string

const (
	RowSkip  RowPolicy = "skip"
	RowAbort RowPolicy = "abort"
)

func ParseRowPolicy(s string) (RowPolicy, error) {
	switch RowPolicy(s) {
	case "", RowSkip:
		return RowSkip, nil
	case RowAbort:
		return RowAbort, nil
	}
	return "", fmt.Errorf("storage: unknown row policy %q", s)
}

var ErrMalformedRow = errors.New("storage: malformed row")

// MalformedRowError - строка, которую не удалось разобрать
type MalformedRowError struct {
	Line   int
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("storage: malformed row at line %d: %s", e.Line, e.Reason)
}

func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedRow
}

type Storage interface {
	// Load - прочитать всю коллекцию
	// Отсутствующее хранилище - пустая коллекция, не ошибка
	Load() (*LoadResult, error)

	// Save - перезаписать хранилище целиком
	Save(students []Student) error
}
