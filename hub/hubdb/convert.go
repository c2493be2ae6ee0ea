// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"database/sql"
	"encoding/json"
	"time"

	"modhost.io/modhost/hub/ident"
)

// Ids are stored in their signed form; the kind bits never reach the
// sign bit, so the conversion is lossless.

func idArg(id ident.ID) int64 { return int64(uint64(id)) }

func scanID(v int64) ident.ID { return ident.ID(uint64(v)) }

func asJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", Error.Wrap(err)
	}
	return string(data), nil
}

func fromJSON(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	return Error.Wrap(json.Unmarshal([]byte(data), v))
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}

func int32Ptr(nv sql.NullInt32) *int32 {
	if !nv.Valid {
		return nil
	}
	v := nv.Int32
	return &v
}
