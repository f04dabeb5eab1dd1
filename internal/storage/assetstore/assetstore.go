// Пакет assetstore — хранение бинарных вложений отчётов на диске.
// Ключ вложения повторяет структуру отчёта:
// reports/{reportID}/{category}/{timestamp}_{sanitizedName}.
// Запись атомарная: temp файл → fsync → rename.
package assetstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// URLPrefix — префикс, по которому вложения отдаются по HTTP.
const URLPrefix = "/assets/"

// Store — управление файлами вложений на диске.
type Store struct {
	// dataDir — корневая директория хранения (RM_ASSET_DATA_DIR)
	dataDir string
	// maxFileSize — максимальный размер одного файла в байтах
	maxFileSize int64
	// now — источник времени, подменяется в тестах
	now func() time.Time
	// seq — монотонный счётчик, вмешивается в метку времени ключа:
	// конкурентные записи одноимённых файлов в одной миллисекунде
	// получают разные ключи
	seq atomic.Int64
}

// SaveResult — результат сохранения вложения.
type SaveResult struct {
	// Key — относительный ключ файла в dataDir
	Key string
	// URL — публичный URL вложения
	URL string
	// Size — размер записанных данных в байтах
	Size int64
}

// ErrFileTooLarge возвращается при превышении лимита размера файла.
var ErrFileTooLarge = fmt.Errorf("превышен максимальный размер файла")

// New создаёт новый Store. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string, maxFileSize int64) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию вложений %s: %w", dataDir, err)
	}

	return &Store{
		dataDir:     dataDir,
		maxFileSize: maxFileSize,
		now:         time.Now,
	}, nil
}

// Save записывает данные из reader на диск под ключом
// reports/{reportID}/{category}/{timestamp}_{sanitizedName}.
// Метка времени миллисекундная плюс монотонный счётчик, поэтому
// одноимённые файлы в одной категории не затирают друг друга
// даже при конкурентной записи.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Save(reader io.Reader, reportID, category, originalFilename string) (*SaveResult, error) {
	key := s.buildKey(reportID, category, originalFilename)
	fullPath := filepath.Join(s.dataDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию категории: %w", err)
	}

	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Лимит +1 байт: если скопировано больше лимита — файл превысил его
	size, err := io.Copy(f, io.LimitReader(reader, s.maxFileSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if size > s.maxFileSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, ErrFileTooLarge
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Key:  key,
		URL:  URLPrefix + key,
		Size: size,
	}, nil
}

// Open открывает вложение для чтения по ключу.
// Вызывающий код обязан закрыть ReadCloser.
func (s *Store) Open(key string) (*os.File, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("вложение не найдено: %s", key)
		}
		return nil, fmt.Errorf("ошибка открытия вложения %s: %w", key, err)
	}

	return f, nil
}

// Delete удаляет вложение с диска.
// Возвращает nil если файл уже не существует.
func (s *Store) Delete(key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления вложения %s: %w", key, err)
	}
	return nil
}

// DeleteReportDir удаляет все вложения отчёта вместе с его директорией.
// Вызывается при удалении отчёта.
func (s *Store) DeleteReportDir(reportID string) error {
	dir := filepath.Join(s.dataDir, "reports", sanitize(reportID))

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("ошибка удаления вложений отчёта %s: %w", reportID, err)
	}
	return nil
}

// Exists проверяет существование вложения на диске.
func (s *Store) Exists(key string) bool {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(fullPath)
	return statErr == nil
}

// DataDir возвращает путь к директории данных.
func (s *Store) DataDir() string {
	return s.dataDir
}

// buildKey формирует ключ вложения.
func (s *Store) buildKey(reportID, category, originalFilename string) string {
	name := sanitize(originalFilename)
	if len(name) > 80 {
		name = name[len(name)-80:]
	}

	// Счётчик строго возрастает, время не убывает — сумма уникальна
	// в пределах процесса даже внутри одной миллисекунды.
	ts := s.now().UTC().UnixMilli() + s.seq.Add(1) - 1

	return fmt.Sprintf("reports/%s/%s/%d_%s",
		sanitize(reportID), sanitize(category), ts, name)
}

// resolve превращает ключ в абсолютный путь, отклоняя выход за пределы dataDir.
func (s *Store) resolve(key string) (string, error) {
	fullPath := filepath.Join(s.dataDir, filepath.FromSlash(key))

	rel, err := filepath.Rel(s.dataDir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("недопустимый ключ вложения: %s", key)
	}
	return fullPath, nil
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только латинские буквы, цифры, точку, дефис и подчёркивание;
// всё остальное заменяется на подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
