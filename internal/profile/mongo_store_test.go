package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/clinicore/clinicore/internal/role"
)

func TestProfileDocRoundTrip(t *testing.T) {
	p := Profile{
		UID:       "uid-1",
		Email:     "a@x.com",
		FirstName: "A",
		LastName:  "B",
		Phone:     "555-0100",
		Birthdate: "1990-04-02",
		Address:   "12 Main St",
		Role:      role.RoleAdmin,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	doc := toDoc(&p)
	got, err := fromDoc(&doc)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestProfileDocStoresRoleAsString(t *testing.T) {
	doc := toDoc(&Profile{UID: "uid-1", Role: role.RoleSuperadmin})
	assert.Equal(t, "superadmin", doc.Role)

	// The persisted shape is keyed by _id with a string role field.
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "uid-1", m["_id"])
	assert.Equal(t, "superadmin", m["role"])
}

func TestFromDocRejectsUnknownRole(t *testing.T) {
	_, err := fromDoc(&profileDoc{UID: "uid-1", Role: "owner"})
	assert.Error(t, err)
}
