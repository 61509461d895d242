package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"
)

// UUIDToPgtype converts uuid.UUID to pgtype.UUID
func UUIDToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// PgtypeToUUID converts pgtype.UUID to uuid.UUID
func PgtypeToUUID(id pgtype.UUID) uuid.UUID {
	return id.Bytes
}

// OptionToPgtype converts mo.Option[uuid.UUID] to a nullable pgtype.UUID
func OptionToPgtype(id mo.Option[uuid.UUID]) pgtype.UUID {
	v, ok := id.Get()
	if !ok {
		return pgtype.UUID{}
	}
	return UUIDToPgtype(v)
}

// PgtypeToOption converts a nullable pgtype.UUID to mo.Option[uuid.UUID]
func PgtypeToOption(id pgtype.UUID) mo.Option[uuid.UUID] {
	if !id.Valid {
		return mo.None[uuid.UUID]()
	}
	return mo.Some(uuid.UUID(id.Bytes))
}

// PgtypeToTime converts pgtype.Timestamp to time.Time
func PgtypeToTime(t pgtype.Timestamp) time.Time {
	return t.Time
}
