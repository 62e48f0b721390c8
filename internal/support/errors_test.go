package support

import (
	"errors"
	"fmt"
	"testing"

	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"github.com/stretchr/testify/assert"
)

func TestFromStore(t *testing.T) {
	verr := &storage.ValidationError{Fields: map[string]string{"email": "must be a valid email"}}

	e := fromStore("create", fmt.Errorf("wrapped: %w", verr))
	assert.Equal(t, ErrorValidation, e.Code)
	assert.Equal(t, verr.Fields, e.Fields)

	e = fromStore("get", fmt.Errorf("storage: get: %w", storage.ErrNotFound))
	assert.Equal(t, ErrorNotFound, e.Code)
	assert.True(t, errors.Is(e, storage.ErrNotFound))

	e = fromStore("get", errors.New("connection reset"))
	assert.Equal(t, ErrorPersistence, e.Code)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorAccessDenied, CodeOf(fmt.Errorf("x: %w", newError(ErrorAccessDenied, "nope", nil))))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Nil(t, FieldsOf(errors.New("plain")))
	assert.Equal(t, "support: UPSTREAM (media upload failed): boom", newError(ErrorUpstream, "media upload failed", errors.New("boom")).Error())
}

func TestStateRules(t *testing.T) {
	next, changed := statusAfterOperatorReply(models.StatusOpen)
	assert.True(t, changed)
	assert.Equal(t, models.StatusPending, next)

	for _, st := range []models.Status{models.StatusPending, models.StatusResolved, models.StatusClosed} {
		next, changed := statusAfterOperatorReply(st)
		assert.False(t, changed)
		assert.Equal(t, st, next)
	}

	assert.True(t, shouldHandOff(&models.Conversation{Mode: models.ModeAIBot}, true))
	assert.False(t, shouldHandOff(&models.Conversation{Mode: models.ModeHumanAgent}, true))
	assert.False(t, shouldHandOff(&models.Conversation{Mode: models.ModeAIBot}, false))

	changed, err := statusChange(models.StatusOpen, models.StatusOpen)
	assert.NoError(t, err)
	assert.False(t, changed)
	changed, err = statusChange(models.StatusClosed, models.StatusOpen)
	assert.NoError(t, err)
	assert.True(t, changed)
	_, err = statusChange(models.StatusOpen, "archived")
	assert.Equal(t, ErrorValidation, CodeOf(err))
}
