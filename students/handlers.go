package students

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	. "studentrecords/storage"
)

// SetupHandlers - настройка обработчиков
func (h *StudentService) SetupHandlers(group fiber.Router) {
	group.Get("/students", adaptor.HTTPHandlerFunc(h.HandlerGetStudents))

	group.Get("/students/next-id", adaptor.HTTPHandlerFunc(h.HandlerNextId))

	group.Get("/student", adaptor.HTTPHandlerFunc(h.HandlerGetStudent))

	group.Post("/students", adaptor.HTTPHandlerFunc(h.HandlerCreateStudent))

	group.Put("/students", adaptor.HTTPHandlerFunc(h.HandlerUpdateStudent))

	group.Delete("/students", adaptor.HTTPHandlerFunc(h.HandlerDeleteStudent))
}

// HandlerGetStudents - список студентов с поиском, фильтром и сортировкой
// @Summary List students
// @Description List students in insertion order, optionally searched by name, filtered by course or sorted
// @Tags Student
// @Produce  json
// @Param   name      query    string  false  "Case-insensitive name substring"
// @Param   course    query    string  false  "Case-insensitive exact course"
// @Param   sort      query    string  false  "Sort key" Enums(name, age)
// @Success 200 {array} storage.Student
// @Failure 400 {string} error "Invalid request"
// @Router /students [get]
func (h *StudentService) HandlerGetStudents(w http.ResponseWriter, r *http.Request) {
	const op = "StudentService: HandlerGetStudents"

	query := r.URL.Query()
	sortBy := query.Get("sort")

	Logger.Debug(op, slog.String("query", query.Encode()))

	var students []Student
	switch sortBy {
	case "":
		students = h.GetAll()
	case "name":
		students = h.SortedByName()
	case "age":
		students = h.SortedByAge()
	default:
		sendResponseOrError(op, &InvalidError{"unknown sort " + sortBy}, w, 0, nil)
		return
	}

	// Поиск и фильтр применяются поверх выбранного порядка
	if query.Has("name") {
		students = intersect(students, h.SearchByName(query.Get("name")))
	}
	if query.Has("course") {
		students = intersect(students, h.ByCourse(query.Get("course")))
	}

	body, err := json.Marshal(students)
	sendResponseOrError(op, err, w, http.StatusOK, body, slog.Int("count", len(students)))
}

// intersect - элементы from, присутствующие в subset, в порядке from
func intersect(from, subset []Student) []Student {
	ids := make(map[int]struct{}, len(subset))
	for _, st := range subset {
		ids[st.Id] = struct{}{}
	}

	result := []Student{}
	for _, st := range from {
		if _, ok := ids[st.Id]; ok {
			result = append(result, st)
		}
	}
	return result
}

// HandlerNextId - следующий свободный идентификатор
// @Summary Next id
// @Description Id the next created student will get
// @Tags Student
// @Produce  json
// @Success 200 {object} map[string]int
// @Router /students/next-id [get]
func (h *StudentService) HandlerNextId(w http.ResponseWriter, r *http.Request) {
	const op = "StudentService: HandlerNextId"

	next := h.NextId()
	body, err := json.Marshal(map[string]int{"id": next})
	sendResponseOrError(op, err, w, http.StatusOK, body, slog.Int("id", next))
}

// HandlerGetStudent - получение студента по идентификатору
// @Summary Get student
// @Description Get student by id
// @Tags Student
// @Produce  json
// @Param   id    query    int  true  "Student id"
// @Success 200 {object} storage.Student
// @Failure 400 {string} error "Invalid request"
// @Failure 404 {string} error "Student not found"
// @Router /student [get]
func (h *StudentService) HandlerGetStudent(w http.ResponseWriter, r *http.Request) {
	const op = "StudentService: HandlerGetStudent"

	id, err := parseId(r)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil)
		return
	}

	student, err := h.GetById(id)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil, slog.Int("id", id))
		return
	}

	body, err := json.Marshal(student)
	sendResponseOrError(op, err, w, http.StatusOK, body, slog.Any("student", student))
}

// HandlerCreateStudent - создание студента
// @Summary Create student
// @Description Create student, the id is assigned by the service
// @Tags Student
// @Accept  json
// @Produce  json
// @Param   body     body    storage.Student   true        "Student data, id is ignored"
// @Success 201 {object} map[string]int
// @Failure 400 {string} error "Invalid request"
// @Failure 500 {string} error "Storage error"
// @Router /students [post]
func (h *StudentService) HandlerCreateStudent(w http.ResponseWriter, r *http.Request) {
	const op = "StudentService: HandlerCreateStudent"

	data, err := readBody(op, r)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil)
		return
	}

	student, err := data.toStudent(false)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil)
		return
	}

	created, err := h.Create(student.Name, student.Age, student.Course)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil)
		return
	}

	body, err := json.Marshal(map[string]int{"id": created.Id})
	sendResponseOrError(op, err, w, http.StatusCreated, body, slog.Int("id", created.Id))
}

// HandlerUpdateStudent - замена данных студента
// @Summary Update student
// @Description Replace name, age and course of the student with the given id
// @Tags Student
// @Accept  json
// @Produce  json
// @Param   body     body    storage.Student   true        "Student data"
// @Success 200 {string} string "OK"
// @Failure 400 {string} error "Invalid request"
// @Failure 404 {string} error "Student not found"
// @Failure 500 {string} error "Storage error"
// @Router /students [put]
func (h *StudentService) HandlerUpdateStudent(w http.ResponseWriter, r *http.Request) {
	const op = "StudentService: HandlerUpdateStudent"

	data, err := readBody(op, r)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil)
		return
	}

	student, err := data.toStudent(true)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil)
		return
	}

	err = h.Update(student)
	sendResponseOrError(op, err, w, http.StatusOK, nil, slog.Int("id", student.Id))
}

// HandlerDeleteStudent - удаление студента
// @Summary Delete student
// @Description Delete student by id
// @Tags Student
// @Produce  json
// @Param   id    query    int  true  "Student id"
// @Success 200 {string} string "OK"
// @Failure 400 {string} error "Invalid request"
// @Failure 404 {string} error "Student not found"
// @Failure 500 {string} error "Storage error"
// @Router /students [delete]
func (h *StudentService) HandlerDeleteStudent(w http.ResponseWriter, r *http.Request) {
	const op = "StudentService: HandlerDeleteStudent"

	id, err := parseId(r)
	if err != nil {
		sendResponseOrError(op, err, w, 0, nil)
		return
	}

	err = h.DeleteById(id)
	sendResponseOrError(op, err, w, http.StatusOK, nil, slog.Int("id", id))
}

func readBody(op string, r *http.Request) (*studentBody, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	Logger.Debug(op, slog.String("body", string(body)))

	var data studentBody
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &InvalidError{err.Error()}
	}
	return &data, nil
}
