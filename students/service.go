package students

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	. "studentrecords/storage"
)

var Logger = slog.Default()

// SavePolicy - что делать при ошибке сохранения
type SavePolicy string

const (
	// SaveSwallow - залогировать и продолжить, ошибка доступна через LastSaveError
	SaveSwallow SavePolicy = "swallow"
	// SavePropagate - вернуть ошибку вызывающему
	SavePropagate SavePolicy = "propagate"
)

func ParseSavePolicy(s string) (SavePolicy, error) {
	switch SavePolicy(s) {
	case "", SaveSwallow:
		return SaveSwallow, nil
	case SavePropagate:
		return SavePropagate, nil
	}
	return "", fmt.Errorf("students: unknown save policy %q", s)
}

type Option func(*StudentService)

func WithSavePolicy(policy SavePolicy) Option {
	return func(s *StudentService) {
		s.policy = policy
	}
}

// Сервис
// Коллекция в памяти - единственный источник истины,
// хранилище перезаписывается целиком после каждого изменения.
type StudentService struct {
	storage Storage // интерфейс хранилища

	mu          sync.RWMutex
	students    []Student
	policy      SavePolicy
	lastSaveErr error
}

// Конструктор, загружает коллекцию один раз
func NewStudentService(storage Storage, opts ...Option) (*StudentService, error) {
	s := &StudentService{
		storage:  storage,
		students: []Student{},
		policy:   SaveSwallow,
	}
	for _, opt := range opts {
		opt(s)
	}

	Logger.Debug("StudentService: NewStudentService", slog.String("policy", string(s.policy)))

	// Проверка существования хранилища
	if s.storage == nil {
		Logger.Info("StudentService: NewStudentService", slog.String("error", "storage is nil"))
		return nil, ErrInternal
	}

	result, err := s.storage.Load()
	if err != nil {
		// Прерывание на некорректной строке - явный выбор, не глушим
		if errors.Is(err, ErrMalformedRow) || s.policy == SavePropagate {
			Logger.Info("StudentService: NewStudentService load failed", slog.String("error", err.Error()))
			return nil, errors.Join(ErrStorage, err)
		}
		Logger.Error("StudentService: NewStudentService load failed, starting empty", slog.String("error", err.Error()))
		return s, nil
	}

	s.students = result.Students
	if s.students == nil {
		s.students = []Student{}
	}

	Logger.Debug("StudentService: NewStudentService loaded", slog.Int("count", len(s.students)), slog.Int("skipped", result.Skipped))
	return s, nil
}

// save - полная перезапись хранилища, вызывается под блокировкой
func (s *StudentService) save(op string) error {
	err := s.storage.Save(s.students)
	s.lastSaveErr = err
	if err == nil {
		return nil
	}

	if s.policy == SavePropagate {
		Logger.Info("StudentService: "+op+" save failed", slog.String("error", err.Error()))
		return errors.Join(ErrStorage, err)
	}

	Logger.Error("StudentService: "+op+" save failed, memory is the only up-to-date copy", slog.String("error", err.Error()))
	return nil
}

// LastSaveError - ошибка последнего сохранения, nil после успешного
func (s *StudentService) LastSaveError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSaveErr
}

func (s *StudentService) indexOf(id int) int {
	return slices.IndexFunc(s.students, func(st Student) bool {
		return st.Id == id
	})
}

// validate - одна запись должна помещаться в одну строку файла
func validate(student Student) error {
	if student.Age < 0 {
		return &InvalidError{fmt.Sprintf("negative age %d", student.Age)}
	}
	if strings.ContainsAny(student.Name, "\r\n") {
		return &InvalidError{"name contains a line break"}
	}
	if strings.ContainsAny(student.Course, "\r\n") {
		return &InvalidError{"course contains a line break"}
	}
	return nil
}

// Методы

// Следующий свободный идентификатор: max(id) + 1 или 1
func (s *StudentService) NextId() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextId()
}

func (s *StudentService) nextId() int {
	next := 1
	for _, st := range s.students {
		// math.MaxInt занят: Create получит DuplicateIdError вместо переполнения
		if st.Id == math.MaxInt {
			return math.MaxInt
		}
		if st.Id >= next {
			next = st.Id + 1
		}
	}
	return next
}

// Добавление студента с готовым идентификатором
// Если идентификатор занят, возвращает DuplicateIdError и ничего не меняет
func (s *StudentService) Add(student Student) error {
	Logger.Debug("StudentService: Add", slog.Any("student", student))

	if err := validate(student); err != nil {
		Logger.Info("StudentService: Add failed", slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.add(student)
}

func (s *StudentService) add(student Student) error {
	if s.indexOf(student.Id) >= 0 {
		Logger.Info("StudentService: Add", slog.String("info", "id already exists"), slog.Int("id", student.Id))
		return &DuplicateIdError{Id: student.Id}
	}

	s.students = append(s.students, student)

	Logger.Debug("StudentService: Add student added", slog.Int("id", student.Id))
	return s.save("Add")
}

// Создание студента, идентификатор назначает сервис
func (s *StudentService) Create(name string, age int, course string) (Student, error) {
	Logger.Debug("StudentService: Create", slog.String("name", name), slog.Int("age", age), slog.String("course", course))

	student := Student{Name: name, Age: age, Course: course}
	if err := validate(student); err != nil {
		Logger.Info("StudentService: Create failed", slog.String("error", err.Error()))
		return Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	student.Id = s.nextId()
	if err := s.add(student); err != nil {
		// Сохранение не удалось, но студент уже в коллекции
		if errors.Is(err, ErrStorage) {
			return student, err
		}
		return Student{}, err
	}

	return student, nil
}

// Копия всей коллекции в порядке добавления
func (s *StudentService) GetAll() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.students)
}

// Поиск по идентификатору
func (s *StudentService) GetById(id int) (Student, error) {
	Logger.Debug("StudentService: GetById", slog.Int("id", id))

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		Logger.Info("StudentService: GetById", slog.String("info", "student not found"), slog.Int("id", id))
		return Student{}, &NotFoundError{Id: id}
	}

	return s.students[i], nil
}

// Замена студента целиком, позиция сохраняется
func (s *StudentService) Update(student Student) error {
	Logger.Debug("StudentService: Update", slog.Any("student", student))

	if err := validate(student); err != nil {
		Logger.Info("StudentService: Update failed", slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(student.Id)
	if i < 0 {
		Logger.Info("StudentService: Update", slog.String("info", "student not found"), slog.Int("id", student.Id))
		return &NotFoundError{Id: student.Id}
	}

	s.students[i] = student

	Logger.Debug("StudentService: Update student updated", slog.Int("id", student.Id))
	return s.save("Update")
}

// Удаление по идентификатору
func (s *StudentService) DeleteById(id int) error {
	Logger.Debug("StudentService: DeleteById", slog.Int("id", id))

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		Logger.Info("StudentService: DeleteById", slog.String("info", "student not found"), slog.Int("id", id))
		return &NotFoundError{Id: id}
	}

	s.students = slices.Delete(s.students, i, i+1)

	Logger.Debug("StudentService: DeleteById student deleted", slog.Int("id", id))
	return s.save("DeleteById")
}

// Поиск по подстроке имени без учета регистра
// Пустая строка совпадает со всеми
func (s *StudentService) SearchByName(name string) []Student {
	needle := strings.ToLower(name)
	return s.filter(func(st Student) bool {
		return strings.Contains(strings.ToLower(st.Name), needle)
	})
}

// Точное совпадение курса без учета регистра
func (s *StudentService) ByCourse(course string) []Student {
	return s.filter(func(st Student) bool {
		return strings.EqualFold(st.Course, course)
	})
}

func (s *StudentService) filter(match func(Student) bool) []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := []Student{}
	for _, st := range s.students {
		if match(st) {
			found = append(found, st)
		}
	}
	return found
}

// Копия, отсортированная по имени (устойчивая сортировка)
func (s *StudentService) SortedByName() []Student {
	return s.sorted(func(a, b Student) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Копия, отсортированная по возрасту (устойчивая сортировка)
func (s *StudentService) SortedByAge() []Student {
	return s.sorted(func(a, b Student) int {
		return cmp.Compare(a.Age, b.Age)
	})
}

func (s *StudentService) sorted(compare func(a, b Student) int) []Student {
	students := s.GetAll()
	slices.SortStableFunc(students, compare)
	return students
}
