package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexisbeaulieu97/appflow/internal/model"
)

var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// resolvePointer walks a JSON pointer through doc. Leading slashes are
// optional and an empty pointer selects the whole document.
func resolvePointer(doc any, pointer string) (any, error) {
	trimmed := strings.TrimLeft(pointer, "/")
	if trimmed == "" {
		return doc, nil
	}

	current := doc
	for _, raw := range strings.Split(trimmed, "/") {
		part := pointerUnescaper.Replace(raw)
		switch val := current.(type) {
		case model.Document:
			next, ok := val[part]
			if !ok {
				return nil, fmt.Errorf("unresolvable JSON pointer: %q", pointer)
			}
			current = next
		case []any:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(val) {
				return nil, fmt.Errorf("unresolvable JSON pointer: %q", pointer)
			}
			current = val[index]
		default:
			return nil, fmt.Errorf("unresolvable JSON pointer: %q", pointer)
		}
	}
	return current, nil
}
