package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zip"
)

// Content клиентский архив контента и его хэш.
// Архив отдаётся в режиме соединения 2, хэш объявляется в режиме 1.
type Content struct {
	Zip  []byte
	Hash string
}

// BuildContent собирает zip с blocks.json, items.json и entities.json.
// Время изменения файлов фиксировано, так что одинаковые реестры дают одинаковый хэш.
func BuildContent(r *Registries) (*Content, error) {
	blocks := make([]ClientBlockData, 0, r.Blocks.StateCount())
	for _, state := range r.Blocks.States() {
		blocks = append(blocks, state.Client)
	}
	items := make([]ClientItemData, 0, len(r.Items.List()))
	for _, item := range r.Items.List() {
		items = append(items, item.Client)
	}
	entities := make([]ClientEntityData, 0)
	for _, et := range r.Entities.List() {
		entities = append(entities, et.Client)
	}

	files := []struct {
		name string
		data interface{}
	}{
		{"blocks.json", blocks},
		{"items.json", items},
		{"entities.json", entities},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, f := range files {
		data, err := json.Marshal(f.data)
		if err != nil {
			return nil, fmt.Errorf("сериализация %s: %w", f.name, err)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("создание %s в архиве: %w", f.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("запись %s в архив: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("закрытие архива контента: %w", err)
	}

	zipped := buf.Bytes()
	return &Content{
		Zip:  zipped,
		Hash: strconv.FormatUint(xxhash.Sum64(zipped), 16),
	}, nil
}
