package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/annel0/blockbyte/internal/vec"
)

// ChunkFiles файлы чанков одного мира в каталоге Dir
type ChunkFiles struct {
	Dir string
}

// NewChunkFiles создаёт каталог мира, если его нет
func NewChunkFiles(dir string) (*ChunkFiles, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}
	return &ChunkFiles{Dir: dir}, nil
}

// Path путь файла чанка: chunk{x},{y},{z}.bws
func (cf *ChunkFiles) Path(pos vec.ChunkPosition) string {
	return filepath.Join(cf.Dir, fmt.Sprintf("chunk%d,%d,%d.bws", pos.X, pos.Y, pos.Z))
}

// Read читает файл чанка. Отсутствующий файл даёт ошибку, для которой
// errors.Is(err, os.ErrNotExist) истинно.
func (cf *ChunkFiles) Read(pos vec.ChunkPosition) ([]byte, error) {
	return os.ReadFile(cf.Path(pos))
}

// Exists сообщает, есть ли сохранение чанка
func (cf *ChunkFiles) Exists(pos vec.ChunkPosition) bool {
	_, err := os.Stat(cf.Path(pos))
	return err == nil
}

// Write записывает файл через временный файл и переименование,
// чтобы прерванная запись не оставила обрезанное сохранение.
func (cf *ChunkFiles) Write(pos vec.ChunkPosition, data []byte) error {
	if err := os.MkdirAll(cf.Dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", cf.Dir, err)
	}
	path := cf.Path(pos)
	tmp, err := os.CreateTemp(cf.Dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи чанка %s: %w", pos, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка закрытия файла чанка %s: %w", pos, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка переименования файла чанка %s: %w", pos, err)
	}
	return nil
}

// Count число сохранённых чанков в каталоге
func (cf *ChunkFiles) Count() int {
	matches, err := filepath.Glob(filepath.Join(cf.Dir, "chunk*.bws"))
	if err != nil {
		return 0
	}
	return len(matches)
}
