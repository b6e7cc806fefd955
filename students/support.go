package students

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	. "studentrecords/storage"
)

// studentBody - тело запроса на создание/изменение
type studentBody struct {
	Id     *int    `json:"id"`
	Name   *string `json:"name"`
	Age    *int    `json:"age"`
	Course *string `json:"course"`
}

// toStudent - все поля, кроме id, обязательны
func (b *studentBody) toStudent(needId bool) (Student, error) {
	if needId && b.Id == nil {
		return Student{}, &InvalidError{"id is required"}
	}
	if b.Name == nil || b.Age == nil || b.Course == nil {
		return Student{}, &InvalidError{"name, age and course are required"}
	}

	student := Student{Name: *b.Name, Age: *b.Age, Course: *b.Course}
	if b.Id != nil {
		student.Id = *b.Id
	}
	return student, nil
}

// parseId - идентификатор из параметра запроса
func parseId(r *http.Request) (int, error) {
	idS := r.URL.Query().Get("id")
	id, err := strconv.Atoi(idS)
	if err != nil {
		return 0, &InvalidError{"invalid id " + strconv.Quote(idS)}
	}
	return id, nil
}

// statusOf - код ответа по ошибке
func statusOf(err error) int {
	var internal *InternalError
	var invalid *InvalidError

	switch {
	case errors.As(err, &internal), errors.Is(err, ErrStorage):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateId):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	}
	return http.StatusBadRequest
}

// sendResponseOrError - обработка ошибок
// Если ошибки нет - возвращаем status и тело запроса или OK
// Иначе код по statusOf и текст ошибки
func sendResponseOrError(op string, err error, w http.ResponseWriter, status int, body []byte, attr ...any) {
	if err == nil {
		Logger.Debug(op+" success", attr...)
		if len(body) == 0 {
			body = []byte("OK")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		w.Write(body)
		return
	}

	Logger.Info(op+" failed", append(attr, slog.String("error", err.Error()))...)

	w.WriteHeader(statusOf(err))
	w.Write([]byte(err.Error()))
}
