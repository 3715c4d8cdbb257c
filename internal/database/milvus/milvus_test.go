package milvus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionNameSanitizesUserID(t *testing.T) {
	cases := map[string]string{
		"abc123":          "user_abc123",
		"user@mail.com":   "user_user_mail_com",
		"ABC_def":         "user_ABC_def",
		"a-b.c":           "user_a_b_c",
		"5f2c9d1e-aa11bb": "user_5f2c9d1e_aa11bb",
	}
	for in, want := range cases {
		assert.Equal(t, want, PartitionName(in))
	}
}

func TestPartitionNameDistinctUsersStayDistinct(t *testing.T) {
	assert.NotEqual(t, PartitionName("alice"), PartitionName("bob"))
}
