package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountView_OmitsSecrets(t *testing.T) {
	token := "refresh"
	a := &Account{
		ID:           "id1",
		Username:     "alice",
		Email:        "a@x.com",
		FullName:     "Alice A",
		PasswordHash: "$2a$10$hash",
		AvatarURL:    "https://cdn/a.png",
		RefreshToken: &token,
	}

	b, err := json.Marshal(a.View())
	require.NoError(t, err)

	out := string(b)
	assert.NotContains(t, out, "$2a$10$hash")
	assert.NotContains(t, out, "refresh")
	assert.Contains(t, out, `"username":"alice"`)
	assert.Contains(t, out, `"watchHistory":[]`)
}
