package util

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadIdentifier возвращается при разборе строки, не имеющей вид namespace:key
var ErrBadIdentifier = errors.New("некорректный идентификатор")

// Identifier пространство имён и ключ контента (например, bb:stone).
// Сравнивается по значению и может быть ключом карты.
type Identifier struct {
	Namespace string
	Key       string
}

// NewIdentifier создаёт идентификатор
func NewIdentifier(namespace, key string) Identifier {
	return Identifier{Namespace: namespace, Key: key}
}

// BB создаёт идентификатор во встроенном пространстве имён bb
func BB(key string) Identifier {
	return Identifier{Namespace: "bb", Key: key}
}

// ParseIdentifier разбирает строку namespace:key.
// Ровно два непустых сегмента, иначе ErrBadIdentifier.
func ParseIdentifier(s string) (Identifier, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Identifier{}, fmt.Errorf("%w: %q", ErrBadIdentifier, s)
	}
	return Identifier{Namespace: parts[0], Key: parts[1]}, nil
}

// MustParseIdentifier паникует при некорректной строке
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identifier) String() string {
	return id.Namespace + ":" + id.Key
}

// IsZero сообщает, пустой ли идентификатор
func (id Identifier) IsZero() bool {
	return id.Namespace == "" && id.Key == ""
}
