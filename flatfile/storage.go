// Package flatfile хранит коллекцию студентов в текстовом файле,
// одна запись на строку: id,name,age,course.
//
// Формат plain не экранирует поля: запятая в name или course
// испортит строку при следующей загрузке. Формат csv экранирует поля.
//
// Без Atomic файл перезаписывается на месте, поэтому падение процесса
// во время записи может оставить обрезанный или пустой файл.
package flatfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	. "studentrecords/storage"
)

var Logger = slog.Default()

var _ Storage = (*FileStorage)(nil)

const Delimiter = ","

// Format - формат строк файла
type Format string

const (
	FormatPlain Format = "plain"
	FormatCSV   Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPlain:
		return FormatPlain, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("flatfile: unknown format %q", s)
}

type FileConfig struct {
	Path      string
	Format    Format
	RowPolicy RowPolicy
	Atomic    bool // запись во временный файл и переименование
}

type FileStorage struct {
	config FileConfig
}

// NewFileStorage - создает каталог для файла, если его нет
func NewFileStorage(config FileConfig) (*FileStorage, error) {
	if config.Path == "" {
		Logger.Info("flatfile: path is empty")
		return nil, errors.New("flatfile: path is empty")
	}
	if config.Format == "" {
		config.Format = FormatPlain
	}
	if config.RowPolicy == "" {
		config.RowPolicy = RowSkip
	}

	Logger.Debug("flatfile: config", slog.String("config", fmt.Sprintf("%+v", config)))

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		Logger.Info("flatfile: create directory failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("flatfile: create directory failed: %w", err)
	}

	return &FileStorage{config: config}, nil
}

func (s *FileStorage) Path() string {
	return s.config.Path
}

func (s *FileStorage) Save(students []Student) error {
	Logger.Debug("flatfile: save", slog.String("path", s.config.Path), slog.Int("count", len(students)))

	target := s.config.Path
	if s.config.Atomic {
		target = s.config.Path + ".tmp"
	}

	if err := s.writeFile(target, students); err != nil {
		Logger.Info("flatfile: save failed", slog.String("error", err.Error()))
		return fmt.Errorf("flatfile: save failed: %w", err)
	}

	if s.config.Atomic {
		if err := os.Rename(target, s.config.Path); err != nil {
			Logger.Info("flatfile: save failed", slog.String("error", err.Error()))
			os.Remove(target)
			return fmt.Errorf("flatfile: save failed: %w", err)
		}
	}

	Logger.Debug("flatfile: save success")
	return nil
}

func (s *FileStorage) writeFile(path string, students []Student) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(file)
	if s.config.Format == FormatCSV {
		cw := csv.NewWriter(w)
		for _, st := range students {
			if err := cw.Write(toFields(st)); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	} else {
		for _, st := range students {
			if strings.ContainsAny(st.Name, Delimiter+"\r\n") || strings.ContainsAny(st.Course, Delimiter+"\r\n") {
				Logger.Warn("flatfile: field contains delimiter or line break, row will not load back", slog.Int("id", st.Id))
			}
			if _, err := w.WriteString(strings.Join(toFields(st), Delimiter) + "\n"); err != nil {
				return err
			}
		}
	}

	return w.Flush()
}

func (s *FileStorage) Load() (*LoadResult, error) {
	Logger.Debug("flatfile: load", slog.String("path", s.config.Path))

	file, err := os.Open(s.config.Path)
	if err != nil {
		// Первый запуск
		if errors.Is(err, fs.ErrNotExist) {
			Logger.Debug("flatfile: file not found, empty collection")
			return &LoadResult{Students: []Student{}}, nil
		}
		Logger.Info("flatfile: load failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("flatfile: load failed: %w", err)
	}
	defer file.Close()

	var result *LoadResult
	if s.config.Format == FormatCSV {
		result, err = s.readCSV(file)
	} else {
		result, err = s.readPlain(file)
	}
	if err != nil {
		Logger.Info("flatfile: load failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("flatfile: load failed: %w", err)
	}

	Logger.Debug("flatfile: load success", slog.Int("count", len(result.Students)), slog.Int("skipped", result.Skipped))
	return result, nil
}

func (s *FileStorage) readPlain(r io.Reader) (*LoadResult, error) {
	result := &LoadResult{Students: []Student{}}

	// bufio.Reader без ограничения длины строки, в отличие от Scanner
	reader := bufio.NewReader(r)
	line := 0
	for {
		text, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if text == "" && err == io.EOF {
			break
		}
		line++

		text = strings.TrimRight(text, "\r\n")
		// Пустые строки не считаются записями
		if text != "" {
			fields := strings.Split(text, Delimiter)
			if rowErr := s.appendRow(result, fields, line); rowErr != nil {
				return nil, rowErr
			}
		}

		if err == io.EOF {
			break
		}
	}

	return result, nil
}

func (s *FileStorage) readCSV(r io.Reader) (*LoadResult, error) {
	result := &LoadResult{Students: []Student{}}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, err
			}
			if rowErr := s.reject(result, perr.Line, perr.Err.Error()); rowErr != nil {
				return nil, rowErr
			}
			continue
		}
		line, _ := cr.FieldPos(0)
		if err := s.appendRow(result, fields, line); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// appendRow - разбор одной строки по политике RowPolicy
func (s *FileStorage) appendRow(result *LoadResult, fields []string, line int) error {
	st, reason := fromFields(fields)
	if reason != "" {
		return s.reject(result, line, reason)
	}
	result.Students = append(result.Students, st)
	return nil
}

func (s *FileStorage) reject(result *LoadResult, line int, reason string) error {
	if s.config.RowPolicy == RowAbort {
		return &MalformedRowError{Line: line, Reason: reason}
	}
	Logger.Info("flatfile: row skipped", slog.Int("line", line), slog.String("reason", reason))
	result.Skipped++
	return nil
}

func toFields(st Student) []string {
	return []string{strconv.Itoa(st.Id), st.Name, strconv.Itoa(st.Age), st.Course}
}

func fromFields(fields []string) (Student, string) {
	if len(fields) != 4 {
		return Student{}, fmt.Sprintf("expected 4 fields, got %d", len(fields))
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return Student{}, fmt.Sprintf("invalid id %q", fields[0])
	}
	age, err := strconv.Atoi(fields[2])
	if err != nil {
		return Student{}, fmt.Sprintf("invalid age %q", fields[2])
	}
	return Student{Id: id, Name: fields[1], Age: age, Course: fields[3]}, ""
}
