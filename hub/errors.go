package hub

import (
	"errors"
	"fmt"
)

var (
	ErrRoomAlreadyExist = errors.New("room already exists")
	ErrRoomDoesNotExist = errors.New("room does not exist")
	ErrUserAlreadyExist = errors.New("user already exists in room")
	// ErrRoomClosed is returned by a room that has emptied and stopped but
	// may still be visible until the registry processes its deletion.
	ErrRoomClosed = errors.New("room closed")
)

type RoomAlreadyExistError struct{ RoomID string }

func (e *RoomAlreadyExistError) Error() string {
	return fmt.Sprintf("room %q already exists", e.RoomID)
}

func (e *RoomAlreadyExistError) Is(target error) bool { return target == ErrRoomAlreadyExist }

type RoomDoesNotExistError struct{ RoomID string }

func (e *RoomDoesNotExistError) Error() string {
	return fmt.Sprintf("room %q does not exist", e.RoomID)
}

func (e *RoomDoesNotExistError) Is(target error) bool { return target == ErrRoomDoesNotExist }

type UserAlreadyExistError struct{ RoomID, UserID string }

func (e *UserAlreadyExistError) Error() string {
	return fmt.Sprintf("user %q already in room %q", e.UserID, e.RoomID)
}

func (e *UserAlreadyExistError) Is(target error) bool { return target == ErrUserAlreadyExist }
