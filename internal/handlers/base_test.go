package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"campushub/internal/services"
	"campushub/internal/storage"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrInvalidForumID, http.StatusBadRequest},
		{fmt.Errorf("%w: option 9", services.ErrInvalidOption), http.StatusBadRequest},
		{services.ErrNotAPoll, http.StatusBadRequest},
		{services.ErrMissingUser, http.StatusBadRequest},
		{fmt.Errorf("%w: abc", services.ErrForumNotFound), http.StatusNotFound},
		{services.ErrParentNotFound, http.StatusNotFound},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrVersionConflict, http.StatusConflict},
		{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{errors.Join(errors.New("attach failed"), errors.New("rollback failed")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
