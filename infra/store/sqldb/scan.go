package sqldb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stasyk411/gbr/core/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (model.Unit, error) {
	var (
		u                  model.Unit
		handle             sql.NullString
		status             string
		phone, notes       sql.NullString
		created, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Name, &handle, &status, &phone, &notes, &created, &updatedAt); err != nil {
		return model.Unit{}, err
	}
	st, err := model.ParseUnitStatus(status)
	if err != nil {
		return model.Unit{}, fmt.Errorf("unit %d: corrupt status %q", u.ID, status)
	}
	u.Status = st
	u.ContactHandle = handle.String
	u.Phone = phone.String
	u.Notes = notes.String
	u.CreatedAt = time.Unix(0, created).UTC()
	u.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return u, nil
}

func scanCall(row rowScanner) (model.Call, error) {
	var (
		c                     model.Call
		desc                  sql.NullString
		lat, lon              sql.NullFloat64
		status                string
		unitID                sql.NullInt64
		created               int64
		assignedAt, completed sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.ObjectName, &c.Address, &desc, &lat, &lon, &status, &unitID, &created, &assignedAt, &completed); err != nil {
		return model.Call{}, err
	}
	st, err := model.ParseCallStatus(status)
	if err != nil {
		return model.Call{}, fmt.Errorf("call %d: corrupt status %q", c.ID, status)
	}
	c.Status = st
	c.Description = desc.String
	if lat.Valid {
		c.Latitude = model.Ptr(lat.Float64)
	}
	if lon.Valid {
		c.Longitude = model.Ptr(lon.Float64)
	}
	if unitID.Valid {
		c.UnitID = model.Ptr(unitID.Int64)
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	c.AssignedAt = fromNullTime(assignedAt)
	c.CompletedAt = fromNullTime(completed)
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
