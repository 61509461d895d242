package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jinford/study-rag/internal/core/apperr"
)

// canonicalUUID は 8-4-4-4-12 形式の16進UUIDのみを許可する
var canonicalUUID = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ParseSubjectID は科目IDを検証して解析する。
// uuid.Parse が受け付ける波括弧や urn: 形式は拒否する。
func ParseSubjectID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if !canonicalUUID.MatchString(s) {
		return uuid.Nil, fmt.Errorf("%w: %q", apperr.ErrInvalidScope, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", apperr.ErrInvalidScope, err)
	}
	return id, nil
}
