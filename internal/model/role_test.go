package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRoleName(t *testing.T) {
	for _, name := range RoleNames {
		assert.True(t, IsRoleName(name), name)
	}
	assert.False(t, IsRoleName("admin"))
	assert.False(t, IsRoleName("Super_Admin"))
}
