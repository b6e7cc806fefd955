package students

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentrecords/storage"
)

func seeded(t *testing.T) (*StudentService, *memStorage) {
	return newService(t,
		storage.Student{Id: 1, Name: "Cy", Age: 21, Course: "Math"},
		storage.Student{Id: 2, Name: "ann marie", Age: 19, Course: "CS"},
		storage.Student{Id: 3, Name: "Ann", Age: 20, Course: "cs"},
	)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandlerGetStudents(t *testing.T) {
	s, _ := seeded(t)

	tests := []struct {
		name   string
		query  string
		status int
		ids    []int
	}{
		{name: "all", query: "", status: http.StatusOK, ids: []int{1, 2, 3}},
		{name: "sort by name", query: "?sort=name", status: http.StatusOK, ids: []int{3, 1, 2}},
		{name: "sort by age", query: "?sort=age", status: http.StatusOK, ids: []int{2, 3, 1}},
		{name: "search", query: "?name=ANN", status: http.StatusOK, ids: []int{2, 3}},
		{name: "empty search matches all", query: "?name=", status: http.StatusOK, ids: []int{1, 2, 3}},
		{name: "course", query: "?course=CS", status: http.StatusOK, ids: []int{2, 3}},
		{name: "course and sort", query: "?course=cs&sort=age", status: http.StatusOK, ids: []int{2, 3}},
		{name: "search and sort", query: "?name=ann&sort=name", status: http.StatusOK, ids: []int{3, 2}},
		{name: "unknown sort", query: "?sort=height", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.HandlerGetStudents(rec, httptest.NewRequest(http.MethodGet, "/students"+tt.query, nil))

			require.Equal(t, tt.status, rec.Code)
			if tt.ids != nil {
				assert.Equal(t, tt.ids, ids(decode[[]storage.Student](t, rec)))
			}
		})
	}
}

func TestHandlerGetStudent(t *testing.T) {
	s, _ := seeded(t)

	rec := httptest.NewRecorder()
	s.HandlerGetStudent(rec, httptest.NewRequest(http.MethodGet, "/student?id=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storage.Student{Id: 2, Name: "ann marie", Age: 19, Course: "CS"}, decode[storage.Student](t, rec))

	rec = httptest.NewRecorder()
	s.HandlerGetStudent(rec, httptest.NewRequest(http.MethodGet, "/student?id=9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "id 9 not found")

	rec = httptest.NewRecorder()
	s.HandlerGetStudent(rec, httptest.NewRequest(http.MethodGet, "/student?id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerNextId(t *testing.T) {
	s, _ := seeded(t)

	rec := httptest.NewRecorder()
	s.HandlerNextId(rec, httptest.NewRequest(http.MethodGet, "/students/next-id", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"id": 4}, decode[map[string]int](t, rec))
}

func TestHandlerCreateStudent(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "created", body: `{"name":"Di","age":22,"course":"Art"}`, status: http.StatusCreated},
		{name: "id in body is ignored", body: `{"id":1,"name":"Di","age":22,"course":"Art"}`, status: http.StatusCreated},
		{name: "missing field", body: `{"name":"Di","age":22}`, status: http.StatusBadRequest},
		{name: "negative age", body: `{"name":"Di","age":-1,"course":"Art"}`, status: http.StatusBadRequest},
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "line break in name", body: `{"name":"Di\nX","age":22,"course":"Art"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mem := seeded(t)

			rec := httptest.NewRecorder()
			s.HandlerCreateStudent(rec, httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(tt.body)))
			require.Equal(t, tt.status, rec.Code)

			if tt.status == http.StatusCreated {
				assert.Equal(t, map[string]int{"id": 4}, decode[map[string]int](t, rec))
				assert.Len(t, mem.saved, 4)
			} else {
				assert.Len(t, s.GetAll(), 3)
			}
		})
	}

	t.Run("storage failure with propagate", func(t *testing.T) {
		s, err := NewStudentService(&memStorage{saveErr: errors.New("disk full")}, WithSavePolicy(SavePropagate))
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		s.HandlerCreateStudent(rec, httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(`{"name":"Di","age":22,"course":"Art"}`)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandlerUpdateStudent(t *testing.T) {
	s, _ := seeded(t)

	rec := httptest.NewRecorder()
	s.HandlerUpdateStudent(rec, httptest.NewRequest(http.MethodPut, "/students", strings.NewReader(`{"id":2,"name":"Ann-Marie","age":20,"course":"Art"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	got, err := s.GetById(2)
	require.NoError(t, err)
	assert.Equal(t, storage.Student{Id: 2, Name: "Ann-Marie", Age: 20, Course: "Art"}, got)

	rec = httptest.NewRecorder()
	s.HandlerUpdateStudent(rec, httptest.NewRequest(http.MethodPut, "/students", strings.NewReader(`{"id":9,"name":"X","age":1,"course":"Y"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.HandlerUpdateStudent(rec, httptest.NewRequest(http.MethodPut, "/students", strings.NewReader(`{"name":"X","age":1,"course":"Y"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDeleteStudent(t *testing.T) {
	s, _ := seeded(t)

	rec := httptest.NewRecorder()
	s.HandlerDeleteStudent(rec, httptest.NewRequest(http.MethodDelete, "/students?id=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2, 3}, ids(s.GetAll()))

	rec = httptest.NewRecorder()
	s.HandlerDeleteStudent(rec, httptest.NewRequest(http.MethodDelete, "/students?id=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusOf(ErrInternal))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.Join(ErrStorage, errors.New("io"))))
	assert.Equal(t, http.StatusNotFound, statusOf(&NotFoundError{Id: 1}))
	assert.Equal(t, http.StatusConflict, statusOf(&DuplicateIdError{Id: 1}))
	assert.Equal(t, http.StatusBadRequest, statusOf(&InvalidError{"x"}))
}

func TestSetupHandlers(t *testing.T) {
	s, _ := seeded(t)

	app := fiber.New()
	s.SetupHandlers(app.Group("/"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(`{"name":"Di","age":22,"course":"Art"}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/student?id=4", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var student storage.Student
	require.NoError(t, json.Unmarshal(body, &student))
	assert.Equal(t, storage.Student{Id: 4, Name: "Di", Age: 22, Course: "Art"}, student)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/students/next-id", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/students?id=4", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, s.GetAll(), 3)
}
