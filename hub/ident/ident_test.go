// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package ident_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modhost.io/modhost/hub/ident"
)

func TestRoundTrip(t *testing.T) {
	kinds := []ident.Kind{
		ident.KindUser,
		ident.KindTeam,
		ident.KindProject,
		ident.KindVersion,
		ident.KindOrganization,
		ident.KindGalleryItem,
	}

	seqs := []uint64{0, 1, 61, 62, 63, 12345, 1<<58 - 1}
	for _, kind := range kinds {
		for _, seq := range seqs {
			id, err := ident.New(kind, seq)
			require.NoError(t, err)

			assert.Equal(t, kind, id.Kind())
			assert.Equal(t, seq, id.Seq())

			decoded, err := ident.Decode(kind, ident.Encode(id))
			require.NoError(t, err)
			assert.Equal(t, id, decoded)
		}
	}
}

func TestDecodeCanonical(t *testing.T) {
	id, err := ident.New(ident.KindProject, 99)
	require.NoError(t, err)
	s := ident.Encode(id)

	// leading zero digits re-encode differently and must be rejected
	_, err = ident.DecodeAny("0" + s)
	require.Error(t, err)
	assert.True(t, ident.ErrDecoding.Has(err))

	_, err = ident.DecodeAny("")
	require.Error(t, err)

	_, err = ident.DecodeAny("not*base62")
	require.Error(t, err)

	// 2^63 and anything above is out of range
	_, err = ident.DecodeAny("AzL8n0Y58m8")
	require.Error(t, err)
}

func TestDecodeKindMismatch(t *testing.T) {
	id, err := ident.New(ident.KindProject, 7)
	require.NoError(t, err)

	_, err = ident.Decode(ident.KindUser, ident.Encode(id))
	require.Error(t, err)
	assert.True(t, ident.ErrDecoding.Has(err))
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := ident.New(ident.Kind(0), 1)
	require.Error(t, err)

	_, err = ident.New(ident.KindUser, 1<<58)
	require.Error(t, err)
}

func TestJSON(t *testing.T) {
	id, err := ident.New(ident.KindVersion, 4242)
	require.NoError(t, err)

	data, err := id.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"`+ident.Encode(id)+`"`, string(data))

	var back ident.ID
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, id, back)

	require.Error(t, back.UnmarshalJSON([]byte(`17`)))
}
