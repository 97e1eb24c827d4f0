package token

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/apcore/internal/domain"
)

func TestIssueAndVerify(t *testing.T) {
	secret := []byte("test-secret-at-least-32-bytes-long!")
	taskID := uuid.New()

	issued, err := Issue(secret, taskID, domain.ActionApprove)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Raw)
	assert.NotEmpty(t, issued.Hash)

	assert.True(t, Verify(secret, issued.Raw, issued.Hash))
}

func TestVerifyRejectsTampering(t *testing.T) {
	secret := []byte("test-secret-at-least-32-bytes-long!")
	issued, err := Issue(secret, uuid.New(), domain.ActionReject)
	require.NoError(t, err)

	tampered := issued.Raw + "x"
	assert.False(t, Verify(secret, tampered, issued.Hash))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issued, err := Issue([]byte("secret-one-thats-long-enough-too"), uuid.New(), domain.ActionApprove)
	require.NoError(t, err)

	assert.False(t, Verify([]byte("a-completely-different-secret-xx"), issued.Raw, issued.Hash))
}

func TestParse(t *testing.T) {
	taskID := uuid.New()
	issued, err := Issue([]byte("secret-one-thats-long-enough-too"), taskID, domain.ActionApprove)
	require.NoError(t, err)

	gotID, gotAction, err := Parse(issued.Raw)
	require.NoError(t, err)
	assert.Equal(t, taskID, gotID)
	assert.Equal(t, domain.ActionApprove, gotAction)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, _, err := Parse("not-a-valid-token")
	assert.ErrorIs(t, err, ErrMalformed)

	_, _, err = Parse(uuid.New().String() + ":bogus:" + uuid.New().String())
	assert.ErrorIs(t, err, ErrMalformed)
}
