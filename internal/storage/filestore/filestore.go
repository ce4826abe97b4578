// Пакет filestore — файлы отчётов на диске.
// Каждый пользователь получает свою директорию user_<id>,
// имя файла содержит момент генерации с точностью до миллисекунды.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Ошибки файлового хранилища.
var (
	// ErrFileNotFound — файл отчёта отсутствует на диске.
	ErrFileNotFound = errors.New("файл отчёта не найден")
	// ErrFileExists — файл с таким именем уже существует.
	ErrFileExists = errors.New("файл отчёта уже существует")
)

// Формат метки времени в имени файла: 20260302_103000_123.
const timestampLayout = "20060102_150405.000"

// FileStore — управление файлами отчётов на диске.
type FileStore struct {
	// baseDir — корневая директория отчётов (PT_REPORT_DIR)
	baseDir string
}

// SaveResult — результат сохранения файла отчёта.
type SaveResult struct {
	// Path — путь к файлу (baseDir/user_<id>/allocation_report_<ts>.xlsx)
	Path string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 содержимого
	Checksum string
}

// New создаёт FileStore и корневую директорию, если её нет.
func New(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию отчётов %s: %w", baseDir, err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// BaseDir возвращает корневую директорию отчётов.
func (fs *FileStore) BaseDir() string {
	return fs.baseDir
}

// ReportPath возвращает путь файла отчёта владельца для момента at.
func (fs *FileStore) ReportPath(ownerID string, at time.Time) string {
	ts := strings.Replace(at.UTC().Format(timestampLayout), ".", "_", 1)
	return filepath.Join(fs.userDir(ownerID), "allocation_report_"+ts+".xlsx")
}

// Save записывает отчёт владельца, сформированный write, в файл ReportPath(ownerID, at).
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется. Существующий файл не перезаписывается.
func (fs *FileStore) Save(ownerID string, at time.Time, write func(w io.Writer) error) (*SaveResult, error) {
	dir := fs.userDir(ownerID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию пользователя %s: %w", dir, err)
	}

	fullPath := fs.ReportPath(ownerID, at)
	if _, err := os.Stat(fullPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, fullPath)
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(f, hasher)}

	if err := write(cw); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи отчёта: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Path:     fullPath,
		Size:     cw.n,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл отчёта по сохранённому пути.
// Отсутствующий файл — ErrFileNotFound. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s не является файлом", ErrFileNotFound, path)
	}
	return f, nil
}

// Delete удаляет файл отчёта. Отсутствие файла не считается ошибкой:
// removed = false означает, что файла уже не было.
func (fs *FileStore) Delete(path string) (removed bool, err error) {
	err = os.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка удаления файла %s: %w", path, err)
	}
	return true, nil
}

// Exists проверяет существование файла отчёта.
func (fs *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CheckReady проверяет, что корневая директория отчётов доступна.
// Возвращает статус ("ok", "fail") и сообщение для readiness probe.
func (fs *FileStore) CheckReady() (status string, message string) {
	info, err := os.Stat(fs.baseDir)
	if err != nil {
		return "fail", fmt.Sprintf("директория отчётов недоступна: %v", err)
	}
	if !info.IsDir() {
		return "fail", fmt.Sprintf("%s не является директорией", fs.baseDir)
	}
	return "ok", "директория доступна"
}

func (fs *FileStore) userDir(ownerID string) string {
	return filepath.Join(fs.baseDir, "user_"+sanitize(ownerID))
}

// sanitize оставляет в строке только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "unknown"
	}
	return result.String()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
