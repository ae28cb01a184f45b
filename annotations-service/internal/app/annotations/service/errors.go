package service

import "errors"

const serviceName = "annotations-service"

var (
	// Ошибки валидации: отклоняются до какого-либо обращения к хранилищу
	ErrEmptyComment = errors.New("comment text is empty")
	ErrInvalidStars = errors.New("stars must be an integer between 1 and 5")

	// ErrUnauthenticated - операция записи без identity вызывающего
	// Запись никогда не приписывается анонимному пользователю
	ErrUnauthenticated = errors.New("missing user identity")

	// ErrStoreUnavailable - транзиентная ошибка хранилища
	// Слой сам записи не ретраит: повтор postComment мог бы задублировать
	// комментарий, повтор - явное решение вызывающего
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrFavoriteNotFound = errors.New("favorite not found")
)
