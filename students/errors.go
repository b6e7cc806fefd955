package students

import (
	"errors"
	"fmt"
)

// Внутренняя ошибка
var ErrInternal = &InternalError{"students: internal server error"}

// Ошибка хранилища
var ErrStorage = errors.New("students: storage error")

// Ошибка отсутствия студента
var ErrNotFound = errors.New("students: student not found")

// Ошибка повторного идентификатора
var ErrDuplicateId = errors.New("students: duplicate id")

type InternalError struct {
	msg string
}

func (e *InternalError) Error() string {
	return e.msg
}

// InvalidError - некорректные входные данные
type InvalidError struct {
	msg string
}

func (e *InvalidError) Error() string {
	return "students: invalid input: " + e.msg
}

type NotFoundError struct {
	Id int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("students: student with id %d not found", e.Id)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type DuplicateIdError struct {
	Id int
}

func (e *DuplicateIdError) Error() string {
	return fmt.Sprintf("students: student with id %d already exists", e.Id)
}

func (e *DuplicateIdError) Is(target error) bool {
	return target == ErrDuplicateId
}
